package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

func TestListActiveSkipsInactive(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Store{Name: "Q1", Address: "1 Le Loi", IsActive: true}))
	closed := &models.Store{Name: "Q3", Address: "3 Vo Van Tan", IsActive: true}
	require.NoError(t, repo.Create(ctx, closed))
	require.NoError(t, conn.Model(closed).Update("is_active", false).Error)

	stores, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Q1", stores[0].Name)
}

func TestFindByIDNotFound(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	_, err := repo.FindByID(context.Background(), 404)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
