package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// OrderValidatorConfig bounds the promotion read-through cache.
type OrderValidatorConfig struct {
	PromoCacheSize int
	PromoCacheTTL  time.Duration
}

// DefaultOrderValidatorConfig returns the production cache bounds.
func DefaultOrderValidatorConfig() OrderValidatorConfig {
	return OrderValidatorConfig{PromoCacheSize: 128, PromoCacheTTL: 60 * time.Second}
}

// OrderValidatorImpl implements domain.OrderValidator. It re-checks every
// candidate line against live stock, authoritative prices and active
// promotions; nothing becomes a ProductLine until it passes.
type OrderValidatorImpl struct {
	catalog    domain.CatalogBackend
	promotions domain.PromotionBackend
	resolver   domain.ProductResolver
	logger     *slog.Logger

	promoCache *expirable.LRU[uint, []domain.Promotion]
}

// NewOrderValidator creates a validator with a short-TTL promotion cache.
func NewOrderValidator(catalog domain.CatalogBackend, promotions domain.PromotionBackend, resolver domain.ProductResolver, cfg OrderValidatorConfig, logger *slog.Logger) domain.OrderValidator {
	if cfg.PromoCacheSize <= 0 {
		cfg = DefaultOrderValidatorConfig()
	}
	return &OrderValidatorImpl{
		catalog:    catalog,
		promotions: promotions,
		resolver:   resolver,
		logger:     logger.With(slog.String("component", "order_validator")),
		promoCache: expirable.NewLRU[uint, []domain.Promotion](cfg.PromoCacheSize, nil, cfg.PromoCacheTTL),
	}
}

// Validate checks each input line and returns the validated batch. The batch
// is valid only when every line passes without errors; warnings (price drift,
// exactly-exhausted stock) never block validity.
func (v *OrderValidatorImpl) Validate(ctx context.Context, lines []domain.OrderLineInput) (*domain.ValidationResult, error) {
	result := &domain.ValidationResult{Valid: true}
	if len(lines) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, domain.ErrEmptyOrder.Error())
		return result, nil
	}

	for i, in := range lines {
		line, errs, warns := v.validateLine(ctx, in)
		for _, e := range errs {
			result.Errors = append(result.Errors, fmt.Sprintf("linea %d: %s", i+1, e))
		}
		for _, w := range warns {
			result.Warnings = append(result.Warnings, fmt.Sprintf("linea %d: %s", i+1, w))
		}
		if len(errs) > 0 {
			result.Valid = false
			continue
		}
		result.Lines = append(result.Lines, *line)
	}
	return result, nil
}

func (v *OrderValidatorImpl) validateLine(ctx context.Context, in domain.OrderLineInput) (*domain.ProductLine, []string, []string) {
	var errs, warns []string

	entry, err := v.resolveProduct(ctx, in)
	if err != nil {
		return nil, append(errs, err.Error()), warns
	}

	if in.Quantity < 1 {
		return nil, append(errs, domain.ErrInvalidQuantity.Error()), warns
	}

	stock, err := v.catalog.CheckStock(ctx, entry.ID, in.Quantity)
	if err != nil {
		return nil, append(errs, fmt.Sprintf("no se pudo verificar stock de %s: %v", entry.Name, err)), warns
	}
	if !stock.Available || stock.StockLevel < in.Quantity {
		return nil, append(errs, fmt.Sprintf("stock insuficiente de %s: pedidos %d, disponibles %d", entry.Name, in.Quantity, stock.StockLevel)), warns
	}
	if stock.StockLevel == in.Quantity {
		warns = append(warns, fmt.Sprintf("%s queda sin stock tras esta compra", entry.Name))
	}

	// The catalog price always wins; a caller-supplied price only produces a
	// warning so the client can be told the price changed.
	unitPrice := entry.Price
	if in.UnitPrice > 0 && math.Abs(in.UnitPrice-unitPrice) > 0.009 {
		warns = append(warns, fmt.Sprintf("precio de %s actualizado: %.2f", entry.Name, unitPrice))
	}

	promo := v.bestPromotion(ctx, entry.ID, unitPrice, in.Quantity)
	finalPrice := unitPrice
	if promo != nil {
		finalPrice = unitPrice - promo.Discount(unitPrice, in.Quantity)
	}
	finalPrice = round2(finalPrice)

	line := &domain.ProductLine{
		ProductID:      entry.ID,
		Name:           entry.Name,
		Quantity:       in.Quantity,
		UnitPrice:      unitPrice,
		FinalPrice:     finalPrice,
		Subtotal:       round2(finalPrice * float64(in.Quantity)),
		StockAvailable: stock.StockLevel,
		Promotion:      promo,
	}
	return line, errs, warns
}

// resolveProduct finds the catalog entry by ID, or by fuzzy name when only a
// name was given. A below-threshold fuzzy result means not found.
func (v *OrderValidatorImpl) resolveProduct(ctx context.Context, in domain.OrderLineInput) (*domain.CatalogEntry, error) {
	if in.ProductID != 0 {
		entry, err := v.catalog.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, fmt.Errorf("producto %d: %w", in.ProductID, domain.ErrProductNotFound)
		}
		return entry, nil
	}
	if in.Name == "" {
		return nil, domain.ErrProductNotFound
	}
	candidates := v.resolver.Resolve(in.Name, 1)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%q: %w", in.Name, domain.ErrNoConfidentMatch)
	}
	entry := candidates[0].Entry
	return &entry, nil
}

// bestPromotion applies the highest computed discount among the product's
// active promotions, honoring minimum-quantity gates. Promotion reads go
// through a short-TTL cache.
func (v *OrderValidatorImpl) bestPromotion(ctx context.Context, productID uint, unitPrice float64, quantity int) *domain.Promotion {
	promos, ok := v.promoCache.Get(productID)
	if !ok {
		var err error
		promos, err = v.promotions.ActivePromotions(ctx, productID)
		if err != nil {
			v.logger.Warn("promotion lookup failed",
				slog.Uint64("product_id", uint64(productID)),
				slog.String("error", err.Error()))
			return nil
		}
		v.promoCache.Add(productID, promos)
	}

	var best *domain.Promotion
	var bestDiscount float64
	for i := range promos {
		p := promos[i]
		d := p.Discount(unitPrice, quantity)
		if d > bestDiscount {
			bestDiscount = d
			best = &promos[i]
		}
	}
	return best
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
