package domain

import "time"

// Session holds the conversation state for a single phone number. Exactly one
// session exists per phone; it is created lazily on first contact and reset to
// idle (never deleted) on completion, cancellation or expiry.
type Session struct {
	Phone        string        `json:"phone"`
	State        ConvState     `json:"state"`
	CurrentOrder *PendingOrder `json:"current_order,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// OrderStatus is the lifecycle of a pending order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderPayloadVersion is stamped on every serialized order payload so the
// schema can migrate explicitly.
const OrderPayloadVersion = 1

// PendingOrder is the order being assembled inside a session.
type PendingOrder struct {
	Version         int           `json:"v"`
	Ref             string        `json:"ref"`
	Lines           []ProductLine `json:"lines"`
	Total           float64       `json:"total"`
	DeliveryAddress string        `json:"delivery_address,omitempty"`
	DeliveryDate    string        `json:"delivery_date,omitempty"`
	DeliveryTime    string        `json:"delivery_time,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	Status          OrderStatus   `json:"status"`
	BackendOrderID  uint          `json:"backend_order_id,omitempty"`
	// AppendedLines counts how many lines already reached the backend, so a
	// partially failed closure resumes instead of rolling back.
	AppendedLines int `json:"appended_lines,omitempty"`
	// Fields holds transient values captured mid-flow (registration data,
	// delivery notes) keyed by name.
	Fields map[string]string `json:"fields,omitempty"`
}

// ProductLine is a single validated order line. Subtotal is always
// FinalPrice * Quantity; a line only exists after the validator confirmed
// stock covers the requested quantity.
type ProductLine struct {
	ProductID      uint       `json:"product_id"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPrice      float64    `json:"unit_price"`
	FinalPrice     float64    `json:"final_price"`
	Subtotal       float64    `json:"subtotal"`
	StockAvailable int        `json:"stock_available"`
	Promotion      *Promotion `json:"promotion,omitempty"`
}

// CatalogEntry is a read-only product record sourced from the backend.
// The core only keeps short-lived cached copies for indexing.
type CatalogEntry struct {
	ID         uint
	Name       string
	Price      float64
	Stock      int
	Active     bool
	CategoryID uint
	Category   string
}

// PromotionType distinguishes how a promotion discounts a price.
type PromotionType string

const (
	PromotionPercentage PromotionType = "percentage"
	PromotionFixed      PromotionType = "fixed"
)

// Promotion is a discount rule attached to a product.
type Promotion struct {
	ID          uint          `json:"id"`
	ProductID   uint          `json:"product_id"`
	Type        PromotionType `json:"type"`
	Value       float64       `json:"value"`
	MinQuantity int           `json:"min_quantity"`
	Active      bool          `json:"active"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Discount returns the per-unit discount this promotion grants for the given
// quantity at the given unit price, or 0 when the promotion does not apply.
func (p *Promotion) Discount(unitPrice float64, quantity int) float64 {
	if p == nil || !p.Active || quantity < p.MinQuantity {
		return 0
	}
	switch p.Type {
	case PromotionPercentage:
		return unitPrice * p.Value / 100
	case PromotionFixed:
		if p.Value > unitPrice {
			return unitPrice
		}
		return p.Value
	}
	return 0
}

// MatchCandidate pairs a catalog entry with its fuzzy-match score. Candidates
// are ephemeral, produced per query and never persisted.
type MatchCandidate struct {
	Entry CatalogEntry
	Score float64
}

// StateTransition records one state change for loop detection.
type StateTransition struct {
	State ConvState
	At    time.Time
}

// Intent is the tagged result of classifying a user message, whether it came
// from the external NLU collaborator or the local keyword fallback. It is
// always non-nil with a confidence score, never a bare string.
type Intent struct {
	Name       string
	Confidence float64
	Products   []ExtractedProduct
	Fields     map[string]string
}

// ExtractedProduct is a product mention pulled out of a message.
type ExtractedProduct struct {
	Name     string
	Quantity int
}

// Client is a registered customer account.
type Client struct {
	ID           uint
	Phone        string
	Name         string
	DNI          string
	Email        string
	PasswordHash string
	Address      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockStatus is the result of a live stock check.
type StockStatus struct {
	Available  bool
	StockLevel int
}

// OrderLineInput is a raw, unvalidated order line as extracted from a message.
// Either ProductID or Name must be set.
type OrderLineInput struct {
	ProductID uint
	Name      string
	Quantity  int
	UnitPrice float64
}

// ValidationResult is the outcome of validating a batch of order lines.
// The batch is valid only when no line produced an error; warnings never
// block validity.
type ValidationResult struct {
	Valid    bool
	Lines    []ProductLine
	Errors   []string
	Warnings []string
}

// Total sums the subtotals of the validated lines.
func (r *ValidationResult) Total() float64 {
	var total float64
	for _, l := range r.Lines {
		total += l.Subtotal
	}
	return total
}
