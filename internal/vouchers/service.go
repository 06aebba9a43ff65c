package vouchers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/internal/pricing"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// Validation is returned to clients checking a code before checkout.
type Validation struct {
	Code          string             `json:"code"`
	DiscountType  enums.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	EndDate       string             `json:"end_date"`
}

// Finder looks vouchers up by code.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
}

// Service validates voucher codes.
type Service interface {
	Validate(ctx context.Context, code string) (*Validation, error)
	// Resolve loads and checks a voucher inside an order placement.
	Resolve(ctx context.Context, finder Finder, code string) (*models.Voucher, error)
}

type service struct {
	repo Finder
	now  func() time.Time
	loc  *time.Location
}

func NewService(repo *Repository, loc *time.Location, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{repo: repo, now: now, loc: loc}, nil
}

func (s *service) Validate(ctx context.Context, code string) (*Validation, error) {
	voucher, err := s.Resolve(ctx, s.repo, code)
	if err != nil {
		return nil, err
	}
	return &Validation{
		Code:          voucher.Code,
		DiscountType:  voucher.DiscountType,
		DiscountValue: voucher.DiscountValue,
		EndDate:       voucher.EndDate.In(s.loc).Format(time.DateOnly),
	}, nil
}

func (s *service) Resolve(ctx context.Context, finder Finder, code string) (*models.Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required")
	}
	if finder == nil {
		finder = s.repo
	}
	voucher, err := finder.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	if err := pricing.CheckVoucher(code, voucher, s.now(), s.loc); err != nil {
		return nil, err
	}
	return voucher, nil
}
