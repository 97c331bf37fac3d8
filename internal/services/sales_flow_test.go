package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/mocks"
)

// flowFixture wires a SalesFlowEngine over in-memory collaborators.
type flowFixture struct {
	engine   *SalesFlowEngine
	guard    *FlowGuard
	sessions map[string]*domain.Session
	clients  *mocks.MockClientRepository
	orders   *mocks.MockOrderBackend

	createdOrders  int
	appendedLines  []domain.ProductLine
	confirmedWith  string
	auditSnapshots int
}

// copySession crosses the store boundary the way the Redis repository does:
// as a JSON round trip, so callers never share memory with the stored record.
func copySession(t *testing.T, s *domain.Session) *domain.Session {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var out domain.Session
	require.NoError(t, json.Unmarshal(raw, &out))
	return &out
}

func newFlowFixture(t *testing.T, knownClient *domain.Client) *flowFixture {
	t.Helper()
	f := &flowFixture{sessions: map[string]*domain.Session{}}

	sessionRepo := &mocks.MockSessionRepository{
		GetFunc: func(ctx context.Context, phone string) (*domain.Session, error) {
			if s, ok := f.sessions[phone]; ok {
				return copySession(t, s), nil
			}
			s := &domain.Session{Phone: phone, State: domain.StateIdle, CreatedAt: time.Now()}
			f.sessions[phone] = s
			return copySession(t, s), nil
		},
		SaveFunc: func(ctx context.Context, session *domain.Session) error {
			f.sessions[session.Phone] = copySession(t, session)
			return nil
		},
		SetStateFunc: func(ctx context.Context, phone string, state domain.ConvState, order *domain.PendingOrder) error {
			s := *f.sessions[phone]
			s.State = state
			s.CurrentOrder = order
			f.sessions[phone] = copySession(t, &s)
			return nil
		},
		ClearFunc: func(ctx context.Context, phone string) error {
			s := f.sessions[phone]
			s.State = domain.StateIdle
			s.CurrentOrder = nil
			return nil
		},
		ActivePhonesFunc: func(ctx context.Context) ([]string, error) {
			var phones []string
			for p := range f.sessions {
				phones = append(phones, p)
			}
			return phones, nil
		},
	}

	f.clients = &mocks.MockClientRepository{
		FindByPhoneFunc: func(ctx context.Context, phone string) (*domain.Client, error) {
			if knownClient != nil && knownClient.Phone == phone {
				return knownClient, nil
			}
			return nil, domain.ErrClientNotFound
		},
		CreateFunc: func(ctx context.Context, client *domain.Client) error {
			client.ID = 42
			return nil
		},
	}

	f.orders = &mocks.MockOrderBackend{
		CreateOrderFunc: func(ctx context.Context, clientID uint, ref string) (uint, error) {
			f.createdOrders++
			return 500, nil
		},
		AppendLineFunc: func(ctx context.Context, orderID uint, line domain.ProductLine) error {
			f.appendedLines = append(f.appendedLines, line)
			return nil
		},
		ConfirmOrderFunc: func(ctx context.Context, orderID uint, paymentMethod string) error {
			f.confirmedWith = paymentMethod
			return nil
		},
		CancelOrderFunc: func(ctx context.Context, orderID uint) error {
			return nil
		},
	}

	audit := &mocks.MockPendingOrderAudit{
		RecordFunc: func(ctx context.Context, phone string, order *domain.PendingOrder) error {
			f.auditSnapshots++
			return nil
		},
	}

	entries := testCatalog()
	catalog := &mocks.MockCatalogBackend{
		GetProductFunc: func(ctx context.Context, id uint) (*domain.CatalogEntry, error) {
			for i := range entries {
				if entries[i].ID == id {
					return &entries[i], nil
				}
			}
			return nil, domain.ErrProductNotFound
		},
		CheckStockFunc: func(ctx context.Context, id uint, quantity int) (*domain.StockStatus, error) {
			for i := range entries {
				if entries[i].ID == id {
					return &domain.StockStatus{Available: entries[i].Stock >= quantity, StockLevel: entries[i].Stock}, nil
				}
			}
			return nil, domain.ErrProductNotFound
		},
	}
	promotions := &mocks.MockPromotionBackend{
		ActivePromotionsFunc: func(ctx context.Context, productID uint) ([]domain.Promotion, error) {
			return nil, nil
		},
	}

	resolver := newTestResolver(entries)
	validator := NewOrderValidator(catalog, promotions, resolver, DefaultOrderValidatorConfig(), testLogger())

	passwords := &mocks.MockPasswordService{
		HashFunc:   func(password string) (string, error) { return "hashed:" + password, nil },
		VerifyFunc: func(hashed, password string) bool { return hashed == "hashed:"+password },
	}

	f.guard = NewFlowGuard(DefaultFlowGuardConfig(), testLogger())
	recovery := NewErrorRecovery(100, testLogger())
	fallback := NewFallbackClassifier(NewNormalizer())

	cfg := DefaultSalesFlowConfig()
	cfg.RetryDelay = time.Millisecond

	f.engine = NewSalesFlowEngine(
		sessionRepo, f.clients, f.orders, audit, catalog, promotions,
		resolver, validator, nil, fallback, f.guard, recovery, passwords,
		cfg, testLogger(),
	)
	return f
}

const testPhone = "+51987654321"

func TestFlowGreeting(t *testing.T) {
	f := newFlowFixture(t, nil)

	reply := f.engine.Process(context.Background(), testPhone, "hola buenas")
	assert.Contains(t, reply, "Bienvenido")
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
}

func TestFlowHappyPath(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana", PasswordHash: "hashed:secreto"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	// A noisy buy message resolves to one product and adds the line.
	reply := f.engine.Process(ctx, testPhone, "kiero 2 teclado mecanico redragon")
	assert.Contains(t, reply, "Agregado")
	session := f.sessions[testPhone]
	assert.Equal(t, domain.StateOrderInProgress, session.State)
	require.NotNil(t, session.CurrentOrder)
	require.Len(t, session.CurrentOrder.Lines, 1)
	assert.Equal(t, uint(3), session.CurrentOrder.Lines[0].ProductID)
	assert.Equal(t, 2, session.CurrentOrder.Lines[0].Quantity)
	assert.Equal(t, 300.0, session.CurrentOrder.Total)

	// Asking to confirm recomputes the totals and shows the summary.
	reply = f.engine.Process(ctx, testPhone, "confirmar")
	assert.Contains(t, reply, "Resumen")
	assert.Contains(t, reply, "300.00")
	assert.Equal(t, domain.StateAwaitingConfirmation, f.sessions[testPhone].State)

	// The known client skips registration and goes straight to payment.
	reply = f.engine.Process(ctx, testPhone, "si")
	assert.Contains(t, reply, "Ana")
	assert.Equal(t, domain.StateAwaitingPaymentMethod, f.sessions[testPhone].State)

	// Choosing a payment method closes the sale against the backend.
	reply = f.engine.Process(ctx, testPhone, "yape")
	assert.Contains(t, reply, "Pedido confirmado")
	assert.Equal(t, domain.StateAwaitingPayment, f.sessions[testPhone].State)
	assert.Equal(t, 1, f.createdOrders)
	require.Len(t, f.appendedLines, 1)
	assert.Equal(t, "yape", f.confirmedWith)
	assert.Equal(t, 1, f.auditSnapshots)

	// Reporting the payment moves to confirmation, and the follow-up resets.
	reply = f.engine.Process(ctx, testPhone, "pagado")
	assert.Contains(t, reply, "Pago registrado")
	assert.Equal(t, domain.StatePaymentConfirmed, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "gracias")
	assert.Contains(t, reply, "Gracias por tu compra")
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
	assert.Nil(t, f.sessions[testPhone].CurrentOrder)
}

func TestFlowRegistration(t *testing.T) {
	f := newFlowFixture(t, nil)
	ctx := context.Background()

	f.engine.Process(ctx, testPhone, "quiero 1 teclado mecanico redragon")
	f.engine.Process(ctx, testPhone, "confirmar")

	// Unknown client: confirming routes into registration.
	reply := f.engine.Process(ctx, testPhone, "si")
	assert.Contains(t, reply, "nombre")
	assert.Equal(t, domain.StateAwaitingRegistrationName, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "Ana Torres")
	assert.Contains(t, reply, "DNI")
	assert.Equal(t, domain.StateAwaitingRegistrationDNI, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "45678912")
	assert.Contains(t, reply, "correo")
	assert.Equal(t, domain.StateAwaitingRegistrationEmail, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "ana.torres@example.com")
	assert.Contains(t, reply, "contraseña")
	assert.Equal(t, domain.StateAwaitingRegistrationPass, f.sessions[testPhone].State)

	var created *domain.Client
	f.clients.CreateFunc = func(ctx context.Context, client *domain.Client) error {
		client.ID = 42
		created = client
		return nil
	}

	reply = f.engine.Process(ctx, testPhone, "secreto123")
	assert.Contains(t, reply, "Cuenta creada")
	require.NotNil(t, created)
	assert.Equal(t, "Ana Torres", created.Name)
	assert.Equal(t, "45678912", created.DNI)
	assert.Equal(t, "ana.torres@example.com", created.Email)
	assert.Equal(t, "hashed:secreto123", created.PasswordHash)
	assert.Equal(t, domain.StateAwaitingPaymentMethod, f.sessions[testPhone].State)

	order := f.sessions[testPhone].CurrentOrder
	require.NotNil(t, order)
	assert.Empty(t, order.Fields["reg_name"], "captured registration data is dropped after account creation")
}

func TestFlowResumableClosure(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	f.engine.Process(ctx, testPhone, "quiero 1 teclado mecanico redragon")
	f.engine.Process(ctx, testPhone, "confirmar")
	f.engine.Process(ctx, testPhone, "si")

	// Every append fails on the first closure attempt.
	appendCalls := 0
	f.orders.AppendLineFunc = func(ctx context.Context, orderID uint, line domain.ProductLine) error {
		appendCalls++
		return errors.New("backend unavailable")
	}

	reply := f.engine.Process(ctx, testPhone, "yape")
	assert.NotContains(t, reply, "Pedido confirmado")
	assert.Equal(t, 1, f.createdOrders)
	assert.Equal(t, domain.StateAwaitingPaymentMethod, f.sessions[testPhone].State)

	order := f.sessions[testPhone].CurrentOrder
	require.NotNil(t, order)
	assert.Equal(t, uint(500), order.BackendOrderID, "the created backend order survives the failure")
	assert.Equal(t, 0, order.AppendedLines)

	// The backend recovers; the retry resumes without creating a second order.
	f.orders.AppendLineFunc = func(ctx context.Context, orderID uint, line domain.ProductLine) error {
		f.appendedLines = append(f.appendedLines, line)
		return nil
	}

	reply = f.engine.Process(ctx, testPhone, "yape")
	assert.Contains(t, reply, "Pedido confirmado")
	assert.Equal(t, 1, f.createdOrders, "closure must resume, not recreate the order")
	assert.Len(t, f.appendedLines, 1)
	assert.Equal(t, domain.StateAwaitingPayment, f.sessions[testPhone].State)
}

func TestFlowClosureResumesAfterConfirmFailure(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	f.engine.Process(ctx, testPhone, "quiero 1 teclado mecanico redragon")
	f.engine.Process(ctx, testPhone, "confirmar")
	f.engine.Process(ctx, testPhone, "si")

	// The order and its line reach the backend, but the final confirmation
	// fails.
	f.orders.ConfirmOrderFunc = func(ctx context.Context, orderID uint, paymentMethod string) error {
		return errors.New("backend unavailable")
	}

	reply := f.engine.Process(ctx, testPhone, "yape")
	assert.NotContains(t, reply, "Pedido confirmado")
	assert.Equal(t, domain.StateAwaitingPaymentMethod, f.sessions[testPhone].State)

	order := f.sessions[testPhone].CurrentOrder
	require.NotNil(t, order)
	assert.Equal(t, uint(500), order.BackendOrderID, "the created backend order survives the failed confirmation")
	assert.Equal(t, 1, order.AppendedLines, "appended lines survive the failed confirmation")

	// The backend recovers; the retry confirms the same order.
	f.orders.ConfirmOrderFunc = func(ctx context.Context, orderID uint, paymentMethod string) error {
		f.confirmedWith = paymentMethod
		return nil
	}

	reply = f.engine.Process(ctx, testPhone, "yape")
	assert.Contains(t, reply, "Pedido confirmado")
	assert.Equal(t, 1, f.createdOrders, "closure must resume, not recreate the backend order")
	assert.Len(t, f.appendedLines, 1, "already appended lines are not sent twice")
	assert.Equal(t, "yape", f.confirmedWith)
	assert.Equal(t, domain.StateAwaitingPayment, f.sessions[testPhone].State)
}

func TestFlowProfileUpdate(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana", Email: "ana@example.com"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	var updated *domain.Client
	f.clients.UpdateFunc = func(ctx context.Context, c *domain.Client) error {
		updated = c
		return nil
	}

	reply := f.engine.Process(ctx, testPhone, "necesito cambiar mi correo")
	assert.Contains(t, reply, "correo")
	assert.Equal(t, domain.StateAwaitingNewEmail, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "ana.nueva@example.com")
	assert.Contains(t, reply, "actualizados")
	require.NotNil(t, updated)
	assert.Equal(t, "ana.nueva@example.com", updated.Email)
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
}

func TestFlowLoginWithPassword(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana", PasswordHash: "hashed:secreto"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	reply := f.engine.Process(ctx, testPhone, "quiero ingresar a mi cuenta")
	assert.Contains(t, reply, "contraseña")
	assert.Equal(t, domain.StateAwaitingPassword, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "clave equivocada")
	assert.Contains(t, reply, "no coincide")
	assert.Equal(t, domain.StateAwaitingPassword, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "secreto")
	assert.Contains(t, reply, "Bienvenido")
	assert.Equal(t, domain.StateOrderInProgress, f.sessions[testPhone].State)
}

func TestFlowLoginUnknownPhone(t *testing.T) {
	f := newFlowFixture(t, nil)
	ctx := context.Background()

	reply := f.engine.Process(ctx, testPhone, "quiero ingresar a mi cuenta")
	assert.Contains(t, reply, "teléfono")
	assert.Equal(t, domain.StateAwaitingPhone, f.sessions[testPhone].State)

	other := &domain.Client{ID: 9, Phone: "+51911112222", Name: "Luis"}
	f.clients.FindByPhoneFunc = func(ctx context.Context, phone string) (*domain.Client, error) {
		if phone == other.Phone {
			return other, nil
		}
		return nil, domain.ErrClientNotFound
	}

	reply = f.engine.Process(ctx, testPhone, "+51911112222")
	assert.Contains(t, reply, "Luis")
	assert.Equal(t, domain.StateAwaitingClientConfirmation, f.sessions[testPhone].State)
}

func TestFlowCancel(t *testing.T) {
	client := &domain.Client{ID: 7, Phone: testPhone, Name: "Ana"}
	f := newFlowFixture(t, client)
	ctx := context.Background()

	f.engine.Process(ctx, testPhone, "quiero 1 teclado mecanico redragon")

	reply := f.engine.Process(ctx, testPhone, "cancelar")
	assert.Contains(t, reply, "cancelar")
	assert.Equal(t, domain.StateAwaitingCancelConfirmation, f.sessions[testPhone].State)

	reply = f.engine.Process(ctx, testPhone, "si")
	assert.Contains(t, reply, "cancelado")
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
	assert.Nil(t, f.sessions[testPhone].CurrentOrder)
}

func TestFlowLoopBreaksToSafeState(t *testing.T) {
	f := newFlowFixture(t, nil)
	ctx := context.Background()

	f.sessions[testPhone] = &domain.Session{
		Phone: testPhone,
		State: domain.StateAwaitingConfirmation,
	}
	for i := 0; i < 6; i++ {
		f.guard.RecordTransition(testPhone, domain.StateAwaitingConfirmation)
	}

	reply := f.engine.Process(ctx, testPhone, "que")
	assert.Equal(t, UserMessage(CategoryStateConflict), reply)
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
	assert.False(t, f.guard.LoopDetected(testPhone), "the guard history resets after the safe return")
}

func TestFlowUnknownProduct(t *testing.T) {
	f := newFlowFixture(t, nil)

	reply := f.engine.Process(context.Background(), testPhone, "quiero unas zapatillas nike")
	assert.Contains(t, reply, "No encontré")
	assert.Equal(t, domain.StateIdle, f.sessions[testPhone].State)
}
