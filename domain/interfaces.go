package domain

import (
	"context"
	"time"
)

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	CategoryID uint
	OnlyActive bool
	Limit      int
}

// CatalogBackend is the remote inventory collaborator. Every call can fail
// independently and must be individually guarded by the caller.
type CatalogBackend interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]CatalogEntry, error)
	GetProduct(ctx context.Context, id uint) (*CatalogEntry, error)
	SearchProducts(ctx context.Context, text string, limit int) ([]CatalogEntry, error)
	CheckStock(ctx context.Context, id uint, quantity int) (*StockStatus, error)
}

// OrderBackend is the remote order-writing collaborator.
type OrderBackend interface {
	CreateOrder(ctx context.Context, clientID uint, ref string) (uint, error)
	AppendLine(ctx context.Context, orderID uint, line ProductLine) error
	ConfirmOrder(ctx context.Context, orderID uint, paymentMethod string) error
	CancelOrder(ctx context.Context, orderID uint) error
}

// PromotionBackend reads active promotions for a product.
type PromotionBackend interface {
	ActivePromotions(ctx context.Context, productID uint) ([]Promotion, error)
}

// ClientRepository stores registered customers.
type ClientRepository interface {
	FindByPhone(ctx context.Context, phone string) (*Client, error)
	FindByDNI(ctx context.Context, dni string) (*Client, error)
	Create(ctx context.Context, client *Client) error
	Update(ctx context.Context, client *Client) error
}

// SessionRepository persists per-phone conversation state. Get creates an
// idle session when none exists; Clear resets a session to idle without
// deleting the record.
type SessionRepository interface {
	Get(ctx context.Context, phone string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	SetState(ctx context.Context, phone string, state ConvState, order *PendingOrder) error
	Clear(ctx context.Context, phone string) error
	ActivePhones(ctx context.Context) ([]string, error)
}

// PendingOrderAudit records an immutable snapshot of an order at creation
// time for history.
type PendingOrderAudit interface {
	Record(ctx context.Context, phone string, order *PendingOrder) error
}

// NLUService is the external intent/entity extractor. Absence, timeout or a
// nil result is a valid input to the local keyword fallback, not a fatal
// error.
type NLUService interface {
	Classify(ctx context.Context, text string, history []string) (*Intent, error)
}

// Transcriber converts voice notes to text; its output is treated as just
// another noisy message.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Messenger delivers outbound messages. Failures are logged, not retried by
// the core.
type Messenger interface {
	SendMessage(ctx context.Context, phone, text string) error
	SendImage(ctx context.Context, phone, mediaURL, caption string) error
}

// ProductResolver turns a dirty text query into ranked, accepted catalog
// candidates. An empty result means "no confident match", never "best guess".
type ProductResolver interface {
	Resolve(query string, limit int) []MatchCandidate
	Reindex(ctx context.Context) error
}

// OrderValidator re-checks candidate lines against live stock, prices and
// promotions before they may be treated as confirmed.
type OrderValidator interface {
	Validate(ctx context.Context, lines []OrderLineInput) (*ValidationResult, error)
}

// PasswordService hashes credentials captured during registration.
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// TokenClaims are the JWT claims carried by admin API tokens.
type TokenClaims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenService issues and validates admin API tokens.
type TokenService interface {
	Generate(subject, role string, ttl time.Duration) (string, error)
	Validate(token string) (*TokenClaims, error)
}

// PolicyService answers authorization questions for the admin API.
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer is the subset of the Casbin enforcer the policy service
// needs, kept as an interface so tests can substitute it.
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
