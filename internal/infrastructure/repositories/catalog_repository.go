package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// DBProduct is the database model for a catalog product.
type DBProduct struct {
	ID         uint    `gorm:"primaryKey"`
	Name       string  `gorm:"index;size:255"`
	Price      float64 `gorm:"not null"`
	Stock      int     `gorm:"not null"`
	Active     bool    `gorm:"index"`
	CategoryID uint    `gorm:"index"`
	Category   string  `gorm:"size:128"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM.
func (DBProduct) TableName() string { return "products" }

// DBPromotion is the database model for a product promotion.
type DBPromotion struct {
	ID          uint    `gorm:"primaryKey"`
	ProductID   uint    `gorm:"index"`
	Type        string  `gorm:"size:32"`
	Value       float64 `gorm:"not null"`
	MinQuantity int     `gorm:"default:1"`
	Active      bool    `gorm:"index"`
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM.
func (DBPromotion) TableName() string { return "promotions" }

// CatalogRepositoryImpl implements domain.CatalogBackend and
// domain.PromotionBackend over the products and promotions tables.
type CatalogRepositoryImpl struct {
	db *gorm.DB
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *gorm.DB) *CatalogRepositoryImpl {
	return &CatalogRepositoryImpl{db: db}
}

// ListProducts implements domain.CatalogBackend.
func (r *CatalogRepositoryImpl) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.CatalogEntry, error) {
	q := r.db.WithContext(ctx).Model(&DBProduct{})
	if filter.OnlyActive {
		q = q.Where("active = ?", true)
	}
	if filter.CategoryID != 0 {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []DBProduct
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	entries := make([]domain.CatalogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, dbToEntry(&rows[i]))
	}
	return entries, nil
}

// GetProduct implements domain.CatalogBackend.
func (r *CatalogRepositoryImpl) GetProduct(ctx context.Context, id uint) (*domain.CatalogEntry, error) {
	var row DBProduct
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	entry := dbToEntry(&row)
	return &entry, nil
}

// SearchProducts implements domain.CatalogBackend with a plain ILIKE scan;
// fuzzy ranking happens in the resolver, not here.
func (r *CatalogRepositoryImpl) SearchProducts(ctx context.Context, text string, limit int) ([]domain.CatalogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []DBProduct
	err := r.db.WithContext(ctx).
		Where("active = ? AND name ILIKE ?", true, "%"+text+"%").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	entries := make([]domain.CatalogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, dbToEntry(&rows[i]))
	}
	return entries, nil
}

// CheckStock implements domain.CatalogBackend with a live read.
func (r *CatalogRepositoryImpl) CheckStock(ctx context.Context, id uint, quantity int) (*domain.StockStatus, error) {
	var row DBProduct
	err := r.db.WithContext(ctx).Select("stock").Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &domain.StockStatus{
		Available:  row.Stock >= quantity,
		StockLevel: row.Stock,
	}, nil
}

// ActivePromotions implements domain.PromotionBackend.
func (r *CatalogRepositoryImpl) ActivePromotions(ctx context.Context, productID uint) ([]domain.Promotion, error) {
	var rows []DBPromotion
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND active = ? AND expires_at > ?", productID, true, time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active promotions: %w", err)
	}
	promos := make([]domain.Promotion, 0, len(rows))
	for _, row := range rows {
		promos = append(promos, domain.Promotion{
			ID:          row.ID,
			ProductID:   row.ProductID,
			Type:        domain.PromotionType(row.Type),
			Value:       row.Value,
			MinQuantity: row.MinQuantity,
			Active:      row.Active,
			ExpiresAt:   row.ExpiresAt,
		})
	}
	return promos, nil
}

// AddPromotion inserts a promotion; used by the admin API.
func (r *CatalogRepositoryImpl) AddPromotion(ctx context.Context, p *domain.Promotion) error {
	row := DBPromotion{
		ProductID:   p.ProductID,
		Type:        string(p.Type),
		Value:       p.Value,
		MinQuantity: p.MinQuantity,
		Active:      p.Active,
		ExpiresAt:   p.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	p.ID = row.ID
	return nil
}

// RemovePromotion deactivates a promotion; used by the admin API.
func (r *CatalogRepositoryImpl) RemovePromotion(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&DBPromotion{}).Where("id = ?", id).Update("active", false).Error
}

func dbToEntry(row *DBProduct) domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:         row.ID,
		Name:       row.Name,
		Price:      row.Price,
		Stock:      row.Stock,
		Active:     row.Active,
		CategoryID: row.CategoryID,
		Category:   row.Category,
	}
}
