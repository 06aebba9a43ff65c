package addresses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

func TestFindForUserChecksOwnership(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	lat, lng := 10.77, 106.70
	addr := &models.Address{UserID: 1, Label: "home", AddressText: "12 Nguyen Hue", Latitude: &lat, Longitude: &lng}
	require.NoError(t, repo.Create(ctx, addr))

	got, err := repo.FindForUser(ctx, addr.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "home", got.Label)

	_, err = repo.FindForUser(ctx, addr.ID, 2)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
