package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// DBOrder is the database model for a backend order.
type DBOrder struct {
	ID            uint   `gorm:"primaryKey"`
	Ref           string `gorm:"uniqueIndex;size:64"`
	ClientID      uint   `gorm:"index"`
	Status        string `gorm:"index;size:32"`
	PaymentMethod string `gorm:"size:32"`
	Total         float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM.
func (DBOrder) TableName() string { return "orders" }

// DBOrderLine is the database model for one order line.
type DBOrderLine struct {
	ID         uint `gorm:"primaryKey"`
	OrderID    uint `gorm:"index"`
	ProductID  uint `gorm:"index"`
	Name       string
	Quantity   int
	UnitPrice  float64
	FinalPrice float64
	Subtotal   float64
	CreatedAt  time.Time
}

// TableName returns the table name for GORM.
func (DBOrderLine) TableName() string { return "order_lines" }

// DBPendingOrderSnapshot is the audit record capturing an order payload at
// creation time.
type DBPendingOrderSnapshot struct {
	ID        uint   `gorm:"primaryKey"`
	Phone     string `gorm:"index;size:32"`
	Ref       string `gorm:"index;size:64"`
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (DBPendingOrderSnapshot) TableName() string { return "pending_orders" }

// OrderRepositoryImpl implements domain.OrderBackend and
// domain.PendingOrderAudit using GORM.
type OrderRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository.
func NewOrderRepository(db *gorm.DB) *OrderRepositoryImpl {
	return &OrderRepositoryImpl{db: db}
}

// CreateOrder implements domain.OrderBackend.
func (r *OrderRepositoryImpl) CreateOrder(ctx context.Context, clientID uint, ref string) (uint, error) {
	row := DBOrder{Ref: ref, ClientID: clientID, Status: string(domain.OrderPending)}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return row.ID, nil
}

// AppendLine implements domain.OrderBackend. Each line lands independently;
// a failure mid-batch leaves the earlier lines recorded against the order.
func (r *OrderRepositoryImpl) AppendLine(ctx context.Context, orderID uint, line domain.ProductLine) error {
	row := DBOrderLine{
		OrderID:    orderID,
		ProductID:  line.ProductID,
		Name:       line.Name,
		Quantity:   line.Quantity,
		UnitPrice:  line.UnitPrice,
		FinalPrice: line.FinalPrice,
		Subtotal:   line.Subtotal,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append line: %w", err)
	}
	return r.db.WithContext(ctx).Model(&DBOrder{}).Where("id = ?", orderID).
		Update("total", gorm.Expr("total + ?", line.Subtotal)).Error
}

// ConfirmOrder implements domain.OrderBackend.
func (r *OrderRepositoryImpl) ConfirmOrder(ctx context.Context, orderID uint, paymentMethod string) error {
	result := r.db.WithContext(ctx).Model(&DBOrder{}).Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":         string(domain.OrderConfirmed),
			"payment_method": paymentMethod,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// CancelOrder implements domain.OrderBackend.
func (r *OrderRepositoryImpl) CancelOrder(ctx context.Context, orderID uint) error {
	result := r.db.WithContext(ctx).Model(&DBOrder{}).Where("id = ?", orderID).
		Update("status", string(domain.OrderCancelled))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// GetOrder returns an order row by ID.
func (r *OrderRepositoryImpl) GetOrder(ctx context.Context, orderID uint) (*DBOrder, error) {
	var row DBOrder
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Record implements domain.PendingOrderAudit with a JSON snapshot.
func (r *OrderRepositoryImpl) Record(ctx context.Context, phone string, order *domain.PendingOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order snapshot: %w", err)
	}
	row := DBPendingOrderSnapshot{Phone: phone, Ref: order.Ref, Payload: string(payload)}
	return r.db.WithContext(ctx).Create(&row).Error
}
