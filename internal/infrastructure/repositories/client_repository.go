package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// DBClient is the database model for a registered customer.
type DBClient struct {
	ID           uint   `gorm:"primaryKey"`
	Phone        string `gorm:"uniqueIndex;size:32"`
	Name         string `gorm:"size:255"`
	DNI          string `gorm:"index;size:16"`
	Email        string `gorm:"index;size:255"`
	PasswordHash string `gorm:"column:password"`
	Address      string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM.
func (DBClient) TableName() string { return "clients" }

// ClientRepositoryImpl implements domain.ClientRepository using GORM.
type ClientRepositoryImpl struct {
	db *gorm.DB
}

// NewClientRepository creates a client repository.
func NewClientRepository(db *gorm.DB) domain.ClientRepository {
	return &ClientRepositoryImpl{db: db}
}

// FindByPhone implements domain.ClientRepository.
func (r *ClientRepositoryImpl) FindByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	var row DBClient
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return dbToClient(&row), nil
}

// FindByDNI implements domain.ClientRepository.
func (r *ClientRepositoryImpl) FindByDNI(ctx context.Context, dni string) (*domain.Client, error) {
	var row DBClient
	err := r.db.WithContext(ctx).Where("dni = ?", dni).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return dbToClient(&row), nil
}

// Create implements domain.ClientRepository.
func (r *ClientRepositoryImpl) Create(ctx context.Context, client *domain.Client) error {
	existing, err := r.FindByPhone(ctx, client.Phone)
	if err == nil && existing != nil {
		return domain.ErrClientAlreadyExists
	}
	row := clientToDB(client)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	client.ID = row.ID
	return nil
}

// Update implements domain.ClientRepository.
func (r *ClientRepositoryImpl) Update(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Save(clientToDB(client)).Error
}

func clientToDB(c *domain.Client) *DBClient {
	return &DBClient{
		ID:           c.ID,
		Phone:        c.Phone,
		Name:         c.Name,
		DNI:          c.DNI,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Address:      c.Address,
	}
}

func dbToClient(row *DBClient) *domain.Client {
	return &domain.Client{
		ID:           row.ID,
		Phone:        row.Phone,
		Name:         row.Name,
		DNI:          row.DNI,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Address:      row.Address,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
