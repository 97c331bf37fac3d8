package mocks

import (
	"context"
	"time"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// MockNLUService is a func-field mock of domain.NLUService.
type MockNLUService struct {
	ClassifyFunc func(ctx context.Context, text string, history []string) (*domain.Intent, error)
}

var _ domain.NLUService = (*MockNLUService)(nil)

func (m *MockNLUService) Classify(ctx context.Context, text string, history []string) (*domain.Intent, error) {
	return m.ClassifyFunc(ctx, text, history)
}

// MockTranscriber is a func-field mock of domain.Transcriber.
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)
}

var _ domain.Transcriber = (*MockTranscriber)(nil)

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return m.TranscribeFunc(ctx, audio, mimeType)
}

// MockMessenger is a func-field mock of domain.Messenger.
type MockMessenger struct {
	SendMessageFunc func(ctx context.Context, phone, text string) error
	SendImageFunc   func(ctx context.Context, phone, mediaURL, caption string) error
}

var _ domain.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) SendMessage(ctx context.Context, phone, text string) error {
	return m.SendMessageFunc(ctx, phone, text)
}

func (m *MockMessenger) SendImage(ctx context.Context, phone, mediaURL, caption string) error {
	return m.SendImageFunc(ctx, phone, mediaURL, caption)
}

// MockProductResolver is a func-field mock of domain.ProductResolver.
type MockProductResolver struct {
	ResolveFunc func(query string, limit int) []domain.MatchCandidate
	ReindexFunc func(ctx context.Context) error
}

var _ domain.ProductResolver = (*MockProductResolver)(nil)

func (m *MockProductResolver) Resolve(query string, limit int) []domain.MatchCandidate {
	return m.ResolveFunc(query, limit)
}

func (m *MockProductResolver) Reindex(ctx context.Context) error {
	return m.ReindexFunc(ctx)
}

// MockOrderValidator is a func-field mock of domain.OrderValidator.
type MockOrderValidator struct {
	ValidateFunc func(ctx context.Context, lines []domain.OrderLineInput) (*domain.ValidationResult, error)
}

var _ domain.OrderValidator = (*MockOrderValidator)(nil)

func (m *MockOrderValidator) Validate(ctx context.Context, lines []domain.OrderLineInput) (*domain.ValidationResult, error) {
	return m.ValidateFunc(ctx, lines)
}

// MockPasswordService is a func-field mock of domain.PasswordService.
type MockPasswordService struct {
	HashFunc   func(password string) (string, error)
	VerifyFunc func(hashedPassword, password string) bool
}

var _ domain.PasswordService = (*MockPasswordService)(nil)

func (m *MockPasswordService) Hash(password string) (string, error) {
	return m.HashFunc(password)
}

func (m *MockPasswordService) Verify(hashedPassword, password string) bool {
	return m.VerifyFunc(hashedPassword, password)
}

// MockTokenService is a func-field mock of domain.TokenService.
type MockTokenService struct {
	GenerateFunc func(subject, role string, ttl time.Duration) (string, error)
	ValidateFunc func(token string) (*domain.TokenClaims, error)
}

var _ domain.TokenService = (*MockTokenService)(nil)

func (m *MockTokenService) Generate(subject, role string, ttl time.Duration) (string, error) {
	return m.GenerateFunc(subject, role, ttl)
}

func (m *MockTokenService) Validate(token string) (*domain.TokenClaims, error) {
	return m.ValidateFunc(token)
}

// MockCasbinEnforcer is a func-field mock of domain.CasbinEnforcer.
type MockCasbinEnforcer struct {
	AddPolicyFunc    func(params ...interface{}) (bool, error)
	RemovePolicyFunc func(params ...interface{}) (bool, error)
	EnforceFunc      func(rvals ...interface{}) (bool, error)
	GetPolicyFunc    func() ([][]string, error)
	SavePolicyFunc   func() error
}

var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

func (m *MockCasbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	return m.AddPolicyFunc(params...)
}

func (m *MockCasbinEnforcer) RemovePolicy(params ...interface{}) (bool, error) {
	return m.RemovePolicyFunc(params...)
}

func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	return m.EnforceFunc(rvals...)
}

func (m *MockCasbinEnforcer) GetPolicy() ([][]string, error) {
	return m.GetPolicyFunc()
}

func (m *MockCasbinEnforcer) SavePolicy() error {
	return m.SavePolicyFunc()
}
