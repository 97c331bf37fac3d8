package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/mocks"
)

func newTestValidator(catalog *mocks.MockCatalogBackend, promos *mocks.MockPromotionBackend) domain.OrderValidator {
	return NewOrderValidator(catalog, promos, nil, DefaultOrderValidatorConfig(), testLogger())
}

func fixedCatalog() *mocks.MockCatalogBackend {
	return &mocks.MockCatalogBackend{
		GetProductFunc: func(ctx context.Context, id uint) (*domain.CatalogEntry, error) {
			if id != 1 {
				return nil, domain.ErrProductNotFound
			}
			return &domain.CatalogEntry{ID: 1, Name: "Mouse Logitech", Price: 100, Stock: 10, Active: true}, nil
		},
		CheckStockFunc: func(ctx context.Context, id uint, quantity int) (*domain.StockStatus, error) {
			return &domain.StockStatus{Available: quantity <= 10, StockLevel: 10}, nil
		},
	}
}

func noPromotions() *mocks.MockPromotionBackend {
	return &mocks.MockPromotionBackend{
		ActivePromotionsFunc: func(ctx context.Context, productID uint) ([]domain.Promotion, error) {
			return nil, nil
		},
	}
}

func TestValidateHappyPath(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, 100.0, line.UnitPrice)
	assert.Equal(t, 100.0, line.FinalPrice)
	assert.Equal(t, 200.0, line.Subtotal)
	assert.Equal(t, 200.0, result.Total())
}

func TestValidatePercentagePromotion(t *testing.T) {
	promos := &mocks.MockPromotionBackend{
		ActivePromotionsFunc: func(ctx context.Context, productID uint) ([]domain.Promotion, error) {
			return []domain.Promotion{
				{ID: 7, ProductID: 1, Type: domain.PromotionPercentage, Value: 10, MinQuantity: 2, Active: true, ExpiresAt: time.Now().Add(time.Hour)},
			}, nil
		},
	}
	v := newTestValidator(fixedCatalog(), promos)

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 90.0, result.Lines[0].FinalPrice)
	assert.Equal(t, 180.0, result.Lines[0].Subtotal)

	// Below the minimum quantity the promotion does not apply.
	result, err = v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Lines[0].FinalPrice)
}

func TestValidateInvalidQuantity(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 0}})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Empty(t, result.Lines)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "linea 1")
}

func TestValidateInsufficientStock(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 1000000}})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stock insuficiente")
}

func TestValidateExactStockWarns(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 10}})
	require.NoError(t, err)
	assert.True(t, result.Valid, "exactly exhausting stock is allowed")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "sin stock")
}

func TestValidatePriceDriftWarns(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 80}})
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, 100.0, result.Lines[0].UnitPrice, "the catalog price always wins")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "precio")
}

func TestValidateEmptyBatch(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateDeterministic(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())
	lines := []domain.OrderLineInput{{ProductID: 1, Quantity: 3}}

	first, err := v.Validate(context.Background(), lines)
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, first.Total(), second.Total())
	assert.Equal(t, first.Lines, second.Lines)
}

func TestValidateUnknownProduct(t *testing.T) {
	v := newTestValidator(fixedCatalog(), noPromotions())

	result, err := v.Validate(context.Background(), []domain.OrderLineInput{{ProductID: 99, Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}
