package mocks

import (
	"context"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// MockSessionRepository is a func-field mock of domain.SessionRepository.
type MockSessionRepository struct {
	GetFunc          func(ctx context.Context, phone string) (*domain.Session, error)
	SaveFunc         func(ctx context.Context, session *domain.Session) error
	SetStateFunc     func(ctx context.Context, phone string, state domain.ConvState, order *domain.PendingOrder) error
	ClearFunc        func(ctx context.Context, phone string) error
	ActivePhonesFunc func(ctx context.Context) ([]string, error)
}

var _ domain.SessionRepository = (*MockSessionRepository)(nil)

func (m *MockSessionRepository) Get(ctx context.Context, phone string) (*domain.Session, error) {
	return m.GetFunc(ctx, phone)
}

func (m *MockSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	return m.SaveFunc(ctx, session)
}

func (m *MockSessionRepository) SetState(ctx context.Context, phone string, state domain.ConvState, order *domain.PendingOrder) error {
	return m.SetStateFunc(ctx, phone, state, order)
}

func (m *MockSessionRepository) Clear(ctx context.Context, phone string) error {
	return m.ClearFunc(ctx, phone)
}

func (m *MockSessionRepository) ActivePhones(ctx context.Context) ([]string, error) {
	return m.ActivePhonesFunc(ctx)
}

// MockClientRepository is a func-field mock of domain.ClientRepository.
type MockClientRepository struct {
	FindByPhoneFunc func(ctx context.Context, phone string) (*domain.Client, error)
	FindByDNIFunc   func(ctx context.Context, dni string) (*domain.Client, error)
	CreateFunc      func(ctx context.Context, client *domain.Client) error
	UpdateFunc      func(ctx context.Context, client *domain.Client) error
}

var _ domain.ClientRepository = (*MockClientRepository)(nil)

func (m *MockClientRepository) FindByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	return m.FindByPhoneFunc(ctx, phone)
}

func (m *MockClientRepository) FindByDNI(ctx context.Context, dni string) (*domain.Client, error) {
	return m.FindByDNIFunc(ctx, dni)
}

func (m *MockClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return m.CreateFunc(ctx, client)
}

func (m *MockClientRepository) Update(ctx context.Context, client *domain.Client) error {
	return m.UpdateFunc(ctx, client)
}

// MockCatalogBackend is a func-field mock of domain.CatalogBackend.
type MockCatalogBackend struct {
	ListProductsFunc   func(ctx context.Context, filter domain.ProductFilter) ([]domain.CatalogEntry, error)
	GetProductFunc     func(ctx context.Context, id uint) (*domain.CatalogEntry, error)
	SearchProductsFunc func(ctx context.Context, text string, limit int) ([]domain.CatalogEntry, error)
	CheckStockFunc     func(ctx context.Context, id uint, quantity int) (*domain.StockStatus, error)
}

var _ domain.CatalogBackend = (*MockCatalogBackend)(nil)

func (m *MockCatalogBackend) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.CatalogEntry, error) {
	return m.ListProductsFunc(ctx, filter)
}

func (m *MockCatalogBackend) GetProduct(ctx context.Context, id uint) (*domain.CatalogEntry, error) {
	return m.GetProductFunc(ctx, id)
}

func (m *MockCatalogBackend) SearchProducts(ctx context.Context, text string, limit int) ([]domain.CatalogEntry, error) {
	return m.SearchProductsFunc(ctx, text, limit)
}

func (m *MockCatalogBackend) CheckStock(ctx context.Context, id uint, quantity int) (*domain.StockStatus, error) {
	return m.CheckStockFunc(ctx, id, quantity)
}

// MockOrderBackend is a func-field mock of domain.OrderBackend.
type MockOrderBackend struct {
	CreateOrderFunc  func(ctx context.Context, clientID uint, ref string) (uint, error)
	AppendLineFunc   func(ctx context.Context, orderID uint, line domain.ProductLine) error
	ConfirmOrderFunc func(ctx context.Context, orderID uint, paymentMethod string) error
	CancelOrderFunc  func(ctx context.Context, orderID uint) error
}

var _ domain.OrderBackend = (*MockOrderBackend)(nil)

func (m *MockOrderBackend) CreateOrder(ctx context.Context, clientID uint, ref string) (uint, error) {
	return m.CreateOrderFunc(ctx, clientID, ref)
}

func (m *MockOrderBackend) AppendLine(ctx context.Context, orderID uint, line domain.ProductLine) error {
	return m.AppendLineFunc(ctx, orderID, line)
}

func (m *MockOrderBackend) ConfirmOrder(ctx context.Context, orderID uint, paymentMethod string) error {
	return m.ConfirmOrderFunc(ctx, orderID, paymentMethod)
}

func (m *MockOrderBackend) CancelOrder(ctx context.Context, orderID uint) error {
	return m.CancelOrderFunc(ctx, orderID)
}

// MockPromotionBackend is a func-field mock of domain.PromotionBackend.
type MockPromotionBackend struct {
	ActivePromotionsFunc func(ctx context.Context, productID uint) ([]domain.Promotion, error)
}

var _ domain.PromotionBackend = (*MockPromotionBackend)(nil)

func (m *MockPromotionBackend) ActivePromotions(ctx context.Context, productID uint) ([]domain.Promotion, error) {
	return m.ActivePromotionsFunc(ctx, productID)
}

// MockPendingOrderAudit is a func-field mock of domain.PendingOrderAudit.
type MockPendingOrderAudit struct {
	RecordFunc func(ctx context.Context, phone string, order *domain.PendingOrder) error
}

var _ domain.PendingOrderAudit = (*MockPendingOrderAudit)(nil)

func (m *MockPendingOrderAudit) Record(ctx context.Context, phone string, order *domain.PendingOrder) error {
	return m.RecordFunc(ctx, phone, order)
}
