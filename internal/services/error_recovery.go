package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// ErrorCategory classifies a failure for message selection.
type ErrorCategory string

const (
	CategoryConnectivity  ErrorCategory = "connectivity"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryValidation    ErrorCategory = "validation"
	CategoryStock         ErrorCategory = "stock"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryStateConflict ErrorCategory = "state_conflict"
	CategoryUnknown       ErrorCategory = "unknown"
)

// userMessages maps each category to the user-facing template. Raw internal
// errors never reach the user.
var userMessages = map[ErrorCategory]string{
	CategoryConnectivity:  "Estamos teniendo problemas de conexión 😔 Por favor intenta de nuevo en unos minutos.",
	CategoryTimeout:       "La operación está tardando más de lo normal ⏳ Por favor intenta de nuevo.",
	CategoryValidation:    "Hay un problema con los datos de tu pedido. Revisa las cantidades e intenta otra vez.",
	CategoryStock:         "Lo sentimos, no tenemos stock suficiente de ese producto 😔 ¿Te muestro alternativas?",
	CategoryNotFound:      "No encontré ese producto 🔍 ¿Puedes escribirlo de otra forma?",
	CategoryStateConflict: "Volvamos a empezar para ayudarte mejor 🙂 ¿Qué producto estás buscando?",
	CategoryUnknown:       "Ocurrió un error inesperado 😔 Por favor intenta de nuevo.",
}

// ErrorRecord is one diagnostic entry in the bounded error log.
type ErrorRecord struct {
	Operation string           `json:"operation"`
	Phone     string           `json:"phone"`
	State     domain.ConvState `json:"state"`
	Category  ErrorCategory    `json:"category"`
	Message   string           `json:"message"`
	At        time.Time        `json:"at"`
}

// RecoveryResult is what a guarded operation resolves to: either the
// operation's reply, or a friendly message standing in for the failure.
type RecoveryResult struct {
	Success  bool
	Reply    string
	Category ErrorCategory
}

// ErrorRecovery wraps flow-engine calls, classifies failures and translates
// them into user-facing messages while keeping diagnostics in a bounded
// in-memory log.
type ErrorRecovery struct {
	logger *slog.Logger
	maxLog int

	mu  sync.Mutex
	log []ErrorRecord
}

// NewErrorRecovery creates a recovery wrapper keeping the most recent maxLog
// failures (default 100).
func NewErrorRecovery(maxLog int, logger *slog.Logger) *ErrorRecovery {
	if maxLog <= 0 {
		maxLog = 100
	}
	return &ErrorRecovery{
		logger: logger.With(slog.String("component", "error_recovery")),
		maxLog: maxLog,
	}
}

// Run executes op and, on failure, resolves it to a friendly message for the
// user. fallback, when non-empty, overrides the category template.
func (r *ErrorRecovery) Run(ctx context.Context, opName, phone string, state domain.ConvState, fallback string, op func(context.Context) (string, error)) RecoveryResult {
	reply, err := op(ctx)
	if err == nil {
		return RecoveryResult{Success: true, Reply: reply}
	}

	category := Classify(err)
	r.record(opName, phone, state, category, err)

	msg := userMessages[category]
	if fallback != "" {
		msg = fallback
	}
	return RecoveryResult{Success: false, Reply: msg, Category: category}
}

// Classify buckets an error into the recovery taxonomy using sentinel
// matching first and substring heuristics for errors from collaborators.
func Classify(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, domain.ErrOperationTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, domain.ErrInsufficientStock):
		return CategoryStock
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrNoConfidentMatch),
		errors.Is(err, domain.ErrClientNotFound), errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return CategoryNotFound
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidPhone), errors.Is(err, domain.ErrInvalidCredentials):
		return CategoryValidation
	case errors.Is(err, domain.ErrTransitionNotAllowed), errors.Is(err, domain.ErrLoopDetected):
		return CategoryStateConflict
	case errors.Is(err, domain.ErrBackendUnavailable):
		return CategoryConnectivity
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return CategoryTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "refused"),
		strings.Contains(msg, "unreachable"), strings.Contains(msg, "broken pipe"):
		return CategoryConnectivity
	case strings.Contains(msg, "stock"):
		return CategoryStock
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no encontr"):
		return CategoryNotFound
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "validation"):
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}

// UserMessage returns the template for a category.
func UserMessage(category ErrorCategory) string {
	if msg, ok := userMessages[category]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}

func (r *ErrorRecovery) record(opName, phone string, state domain.ConvState, category ErrorCategory, err error) {
	rec := ErrorRecord{
		Operation: opName,
		Phone:     phone,
		State:     state,
		Category:  category,
		Message:   err.Error(),
		At:        time.Now(),
	}

	r.mu.Lock()
	r.log = append(r.log, rec)
	if len(r.log) > r.maxLog {
		r.log = r.log[len(r.log)-r.maxLog:]
	}
	r.mu.Unlock()

	r.logger.Error("operation failed",
		slog.String("operation", opName),
		slog.String("phone", phone),
		slog.String("state", string(state)),
		slog.String("category", string(category)),
		slog.String("error", err.Error()))
}

// RecentErrors returns a copy of the diagnostic log, most recent last.
func (r *ErrorRecovery) RecentErrors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.log))
	copy(out, r.log)
	return out
}
