package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// SalesFlowConfig bounds the engine's collaborator calls.
type SalesFlowConfig struct {
	NLUTimeout     time.Duration
	BackendTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxOptions     int
	SessionTTL     time.Duration
}

// DefaultSalesFlowConfig returns the production engine parameters.
func DefaultSalesFlowConfig() SalesFlowConfig {
	return SalesFlowConfig{
		NLUTimeout:     8 * time.Second,
		BackendTimeout: 10 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     500 * time.Millisecond,
		MaxOptions:     3,
		SessionTTL:     30 * time.Minute,
	}
}

// FlowContext carries everything one turn needs. Steps are pure
// transformations over it; the engine holds no per-conversation state of its
// own beyond what the session store returns.
type FlowContext struct {
	Phone   string
	Text    string
	Intent  *domain.Intent
	Session *domain.Session
	Client  *domain.Client
}

// StepResult is the outcome of one pipeline step.
type StepResult struct {
	Reply     string
	NextState domain.ConvState
	Order     *domain.PendingOrder
}

// SalesFlowEngine orchestrates the sales pipeline: greet, classify intent,
// query catalog, present options, assist selection, confirm, collect data,
// close sale and follow up.
type SalesFlowEngine struct {
	sessions   domain.SessionRepository
	clients    domain.ClientRepository
	orders     domain.OrderBackend
	audit      domain.PendingOrderAudit
	catalog    domain.CatalogBackend
	promotions domain.PromotionBackend
	resolver   domain.ProductResolver
	validator  domain.OrderValidator
	nlu        domain.NLUService
	fallback   *FallbackClassifier
	guard      *FlowGuard
	recovery   *ErrorRecovery
	passwords  domain.PasswordService
	logger     *slog.Logger
	cfg        SalesFlowConfig
}

// NewSalesFlowEngine wires the engine. nlu may be nil; the local fallback
// classifier then handles every turn.
func NewSalesFlowEngine(
	sessions domain.SessionRepository,
	clients domain.ClientRepository,
	orders domain.OrderBackend,
	audit domain.PendingOrderAudit,
	catalog domain.CatalogBackend,
	promotions domain.PromotionBackend,
	resolver domain.ProductResolver,
	validator domain.OrderValidator,
	nlu domain.NLUService,
	fallback *FallbackClassifier,
	guard *FlowGuard,
	recovery *ErrorRecovery,
	passwords domain.PasswordService,
	cfg SalesFlowConfig,
	logger *slog.Logger,
) *SalesFlowEngine {
	if cfg.MaxOptions <= 0 {
		cfg = DefaultSalesFlowConfig()
	}
	return &SalesFlowEngine{
		sessions:   sessions,
		clients:    clients,
		orders:     orders,
		audit:      audit,
		catalog:    catalog,
		promotions: promotions,
		resolver:   resolver,
		validator:  validator,
		nlu:        nlu,
		fallback:   fallback,
		guard:      guard,
		recovery:   recovery,
		passwords:  passwords,
		logger:     logger.With(slog.String("component", "sales_flow")),
		cfg:        cfg,
	}
}

// Process handles one inbound message and returns the reply to send. Every
// failure resolves to a message plus a valid session state; nothing here
// terminates the process.
func (e *SalesFlowEngine) Process(ctx context.Context, phone, text string) string {
	session, err := e.sessions.Get(ctx, phone)
	if err != nil {
		result := e.recovery.Run(ctx, "session_get", phone, domain.StateIdle, "", func(context.Context) (string, error) {
			return "", err
		})
		return result.Reply
	}

	if e.guard.LoopDetected(phone) {
		return e.breakLoop(ctx, session)
	}

	fctx := &FlowContext{Phone: phone, Text: text, Session: session}
	fctx.Intent = e.stepClassifyIntent(ctx, fctx)

	result := e.recovery.Run(ctx, "process_turn", phone, session.State, "", func(opCtx context.Context) (string, error) {
		step, err := e.dispatch(opCtx, fctx)
		if err != nil {
			return "", err
		}
		if err := e.apply(opCtx, fctx, step); err != nil {
			return "", err
		}
		return step.Reply, nil
	})

	if !result.Success && result.Category == CategoryStateConflict {
		return e.breakLoop(ctx, session)
	}
	return result.Reply
}

// breakLoop routes a stuck conversation to the most recent safe state. The
// safe-return write bypasses the transition guard on purpose; recovery must
// always be able to land.
func (e *SalesFlowEngine) breakLoop(ctx context.Context, session *domain.Session) string {
	safe := e.guard.SafeReturnState(session.Phone)
	session.State = safe
	if safe == domain.StateIdle {
		session.CurrentOrder = nil
	}
	session.UpdatedAt = time.Now()
	if err := e.sessions.Save(ctx, session); err != nil {
		e.logger.Error("safe return failed", slog.String("phone", session.Phone), slog.String("error", err.Error()))
	}
	e.guard.Reset(session.Phone)
	e.logger.Warn("conversation rerouted to safe state",
		slog.String("phone", session.Phone),
		slog.String("state", string(safe)))
	return UserMessage(CategoryStateConflict)
}

// dispatch picks the step for the session's current state.
func (e *SalesFlowEngine) dispatch(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	switch fctx.Session.State {
	case domain.StateIdle:
		return e.stepGreet(ctx, fctx)
	case domain.StateAwaitingClientConfirmation:
		return e.stepConfirmClient(ctx, fctx)
	case domain.StateAwaitingPhone:
		return e.stepCollectPhone(ctx, fctx)
	case domain.StateAwaitingPassword:
		return e.stepCollectPassword(ctx, fctx)
	case domain.StateAwaitingRegistrationName,
		domain.StateAwaitingRegistrationDNI,
		domain.StateAwaitingRegistrationEmail,
		domain.StateAwaitingRegistrationPass:
		return e.stepCollectRegistration(ctx, fctx)
	case domain.StateOrderInProgress:
		return e.stepAssistSelection(ctx, fctx)
	case domain.StateAwaitingConfirmation:
		return e.stepConfirm(ctx, fctx)
	case domain.StateAwaitingPaymentMethod:
		return e.stepCollectPaymentMethod(ctx, fctx)
	case domain.StateAwaitingPayment:
		return e.stepAwaitPayment(ctx, fctx)
	case domain.StatePaymentConfirmed, domain.StateCompleted:
		return e.stepFollowUp(ctx, fctx)
	case domain.StateAwaitingCancelConfirmation:
		return e.stepCancelConfirmation(ctx, fctx)
	case domain.StateAwaitingNewPhone, domain.StateAwaitingNewAddress, domain.StateAwaitingNewEmail:
		return e.stepUpdateProfile(ctx, fctx)
	default:
		return e.stepGreet(ctx, fctx)
	}
}

// apply persists the step's outcome through the guarded transition path.
func (e *SalesFlowEngine) apply(ctx context.Context, fctx *FlowContext, step *StepResult) error {
	if step.NextState == "" || step.NextState == fctx.Session.State {
		if step.Order != nil {
			return e.sessions.SetState(ctx, fctx.Phone, fctx.Session.State, step.Order)
		}
		return nil
	}
	if !domain.CanTransition(fctx.Session.State, step.NextState) {
		return fmt.Errorf("%s -> %s: %w", fctx.Session.State, step.NextState, domain.ErrTransitionNotAllowed)
	}
	order := step.Order
	if order == nil {
		order = fctx.Session.CurrentOrder
	}
	if step.NextState == domain.StateIdle {
		order = nil
	}
	if err := e.sessions.SetState(ctx, fctx.Phone, step.NextState, order); err != nil {
		return err
	}
	e.guard.RecordTransition(fctx.Phone, step.NextState)
	return nil
}

// --- step 1: greet -------------------------------------------------------

func (e *SalesFlowEngine) stepGreet(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	switch fctx.Intent.Name {
	case IntentBuy, IntentQueryCatalog:
		return e.stepQueryCatalog(ctx, fctx)
	case IntentLogin:
		return e.stepStartLogin(ctx, fctx)
	case IntentUpdateProfile:
		return e.routeProfileUpdate(fctx)
	case IntentFarewell:
		return &StepResult{Reply: "¡Gracias por escribirnos! 👋 Estamos para servirte."}, nil
	default:
		return &StepResult{
			Reply: "¡Hola! 👋 Bienvenido a nuestra tienda. Dime qué producto buscas y te muestro precios y stock.",
		}, nil
	}
}

// --- step 2: classify intent ---------------------------------------------

// stepClassifyIntent prefers the external NLU result but always falls back
// to the local keyword classifier, so the turn always has a non-nil intent.
func (e *SalesFlowEngine) stepClassifyIntent(ctx context.Context, fctx *FlowContext) *domain.Intent {
	local := e.fallback.Classify(fctx.Text)
	if e.nlu == nil {
		return local
	}

	var remote *domain.Intent
	err := e.guard.WithTimeout(ctx, e.cfg.NLUTimeout, func(opCtx context.Context) error {
		var nluErr error
		remote, nluErr = e.nlu.Classify(opCtx, fctx.Text, nil)
		return nluErr
	})
	if err != nil || remote == nil || remote.Name == "" {
		if err != nil {
			e.logger.Warn("nlu unavailable, using fallback",
				slog.String("phone", fctx.Phone),
				slog.String("error", err.Error()))
		}
		return local
	}
	if remote.Fields == nil {
		remote.Fields = map[string]string{}
	}
	// Merge locally extracted fields the extractor missed.
	for k, v := range local.Fields {
		if _, ok := remote.Fields[k]; !ok {
			remote.Fields[k] = v
		}
	}
	if len(remote.Products) == 0 {
		remote.Products = local.Products
	}
	return remote
}

// --- step 3: query catalog -----------------------------------------------

func (e *SalesFlowEngine) stepQueryCatalog(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	if len(fctx.Intent.Products) == 0 {
		return &StepResult{Reply: "¿Qué producto estás buscando? Puedo buscarlo por nombre o marca 🔍"}, nil
	}
	mention := fctx.Intent.Products[0]
	candidates := e.resolver.Resolve(mention.Name, e.cfg.MaxOptions)
	if len(candidates) == 0 {
		return &StepResult{Reply: fmt.Sprintf("No encontré %q 🔍 ¿Puedes escribirlo de otra forma?", mention.Name)}, nil
	}
	return e.stepPresentOptions(ctx, fctx, candidates, mention.Quantity)
}

// --- step 4: present options ---------------------------------------------

// stepPresentOptions re-checks promotions for every candidate just before
// display; promotions can change between query and display.
func (e *SalesFlowEngine) stepPresentOptions(ctx context.Context, fctx *FlowContext, candidates []domain.MatchCandidate, quantity int) (*StepResult, error) {
	if quantity < 1 {
		quantity = 1
	}
	if len(candidates) == 1 {
		return e.addLineAndSummarize(ctx, fctx, candidates[0].Entry, quantity)
	}

	var b strings.Builder
	b.WriteString("Encontré estas opciones:\n")
	for i, c := range candidates {
		price := c.Entry.Price
		promoTag := ""
		if promos, err := e.promotions.ActivePromotions(ctx, c.Entry.ID); err == nil {
			for j := range promos {
				if d := promos[j].Discount(price, quantity); d > 0 {
					promoTag = " 🏷️ en promoción"
					break
				}
			}
		}
		fmt.Fprintf(&b, "%d. %s — S/ %.2f (stock: %d)%s\n", i+1, c.Entry.Name, price, c.Entry.Stock, promoTag)
	}
	b.WriteString("Responde con el número o el nombre del producto que quieres 🙂")

	order := fctx.Session.CurrentOrder
	if order == nil {
		order = newPendingOrder()
	}
	return &StepResult{Reply: b.String(), NextState: domain.StateOrderInProgress, Order: order}, nil
}

// --- step 5: assist selection --------------------------------------------

func (e *SalesFlowEngine) stepAssistSelection(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	switch fctx.Intent.Name {
	case IntentCancel:
		return &StepResult{
			Reply:     "¿Seguro que quieres cancelar el pedido? Responde sí o no.",
			NextState: domain.StateAwaitingCancelConfirmation,
		}, nil
	case IntentConfirm:
		return e.stepConfirm(ctx, fctx)
	case IntentDeny:
		return &StepResult{Reply: "Sin problema 🙂 ¿Agrego otro producto o confirmo el pedido?"}, nil
	}

	if len(fctx.Intent.Products) > 0 {
		mention := fctx.Intent.Products[0]
		candidates := e.resolver.Resolve(mention.Name, e.cfg.MaxOptions)
		if len(candidates) == 0 {
			return &StepResult{Reply: fmt.Sprintf("No encontré %q 🔍 ¿Puedes escribirlo de otra forma?", mention.Name)}, nil
		}
		if len(candidates) > 1 && candidates[0].Score < 0.65 {
			// Stricter acceptance when the user is picking among options.
			return e.stepPresentOptions(ctx, fctx, candidates, mention.Quantity)
		}
		return e.addLineAndSummarize(ctx, fctx, candidates[0].Entry, mention.Quantity)
	}
	return &StepResult{Reply: "Dime qué producto agrego, o escribe *confirmar* para cerrar el pedido 🛒"}, nil
}

// addLineAndSummarize validates one line and appends it to the pending order.
func (e *SalesFlowEngine) addLineAndSummarize(ctx context.Context, fctx *FlowContext, entry domain.CatalogEntry, quantity int) (*StepResult, error) {
	var validation *domain.ValidationResult
	err := e.guard.WithTimeout(ctx, e.cfg.BackendTimeout, func(opCtx context.Context) error {
		var vErr error
		validation, vErr = e.validator.Validate(opCtx, []domain.OrderLineInput{{ProductID: entry.ID, Quantity: quantity}})
		return vErr
	})
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return &StepResult{Reply: validationReply(validation)}, nil
	}

	order := fctx.Session.CurrentOrder
	if order == nil {
		order = newPendingOrder()
	}
	order.Lines = append(order.Lines, validation.Lines...)
	order.Total = round2(orderTotal(order))

	var b strings.Builder
	line := validation.Lines[0]
	fmt.Fprintf(&b, "Agregado ✅ %d x %s — S/ %.2f\n", line.Quantity, line.Name, line.Subtotal)
	for _, w := range validation.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", w)
	}
	fmt.Fprintf(&b, "Total parcial: S/ %.2f\n¿Agrego algo más o escribo *confirmar*?", order.Total)

	return &StepResult{Reply: b.String(), NextState: domain.StateOrderInProgress, Order: order}, nil
}

// --- step 6: confirm ------------------------------------------------------

// stepConfirm always recomputes totals through the validator; client-echoed
// numbers are never trusted.
func (e *SalesFlowEngine) stepConfirm(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	order := fctx.Session.CurrentOrder
	if fctx.Session.State == domain.StateAwaitingConfirmation {
		switch fctx.Intent.Name {
		case IntentConfirm:
			return e.routeAfterConfirmation(ctx, fctx)
		case IntentDeny, IntentCancel:
			return &StepResult{
				Reply:     "Ok, el pedido sigue abierto. ¿Qué cambio hago? 🙂",
				NextState: domain.StateOrderInProgress,
			}, nil
		default:
			return &StepResult{Reply: "¿Confirmamos el pedido? Responde sí o no 🙂"}, nil
		}
	}

	if order == nil || len(order.Lines) == 0 {
		return &StepResult{Reply: "Aún no tienes productos en el pedido. Dime qué buscas 🛒"}, nil
	}

	inputs := make([]domain.OrderLineInput, 0, len(order.Lines))
	for _, l := range order.Lines {
		inputs = append(inputs, domain.OrderLineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	var validation *domain.ValidationResult
	err := e.guard.WithTimeout(ctx, e.cfg.BackendTimeout, func(opCtx context.Context) error {
		var vErr error
		validation, vErr = e.validator.Validate(opCtx, inputs)
		return vErr
	})
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return &StepResult{Reply: validationReply(validation)}, nil
	}

	order.Lines = validation.Lines
	order.Total = round2(validation.Total())

	var b strings.Builder
	b.WriteString("📋 Resumen de tu pedido:\n")
	for _, l := range order.Lines {
		fmt.Fprintf(&b, "• %d x %s — S/ %.2f\n", l.Quantity, l.Name, l.Subtotal)
	}
	for _, w := range validation.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", w)
	}
	fmt.Fprintf(&b, "Total: S/ %.2f\n¿Confirmamos? Responde sí o no 🙂", order.Total)

	return &StepResult{Reply: b.String(), NextState: domain.StateAwaitingConfirmation, Order: order}, nil
}

// routeAfterConfirmation decides whether the client is already identified.
func (e *SalesFlowEngine) routeAfterConfirmation(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	client, err := e.clients.FindByPhone(ctx, fctx.Phone)
	if err == nil && client != nil {
		fctx.Client = client
		return &StepResult{
			Reply:     fmt.Sprintf("Perfecto, %s 🙌 ¿Cómo pagas? Opciones: efectivo, tarjeta, yape o plin.", client.Name),
			NextState: domain.StateAwaitingPaymentMethod,
		}, nil
	}
	return &StepResult{
		Reply:     "Para registrar tu pedido necesito tus datos 📇 ¿Cuál es tu nombre completo?",
		NextState: domain.StateAwaitingRegistrationName,
	}, nil
}

// --- step 7: collect data -------------------------------------------------

func (e *SalesFlowEngine) stepConfirmClient(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	switch fctx.Intent.Name {
	case IntentConfirm:
		return &StepResult{
			Reply:     "¡Genial! ¿Qué producto estás buscando? 🛒",
			NextState: domain.StateOrderInProgress,
			Order:     newPendingOrder(),
		}, nil
	case IntentDeny:
		return &StepResult{
			Reply:     "Entiendo, registremos una cuenta nueva. ¿Cuál es tu nombre completo?",
			NextState: domain.StateAwaitingRegistrationName,
		}, nil
	default:
		return &StepResult{Reply: "¿Eres tú? Responde sí o no 🙂"}, nil
	}
}

// stepStartLogin routes an account-access request: a session phone with a
// registered account goes to the password prompt, anything else asks for the
// registered phone number first.
func (e *SalesFlowEngine) stepStartLogin(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	client, err := e.clients.FindByPhone(ctx, fctx.Phone)
	if err != nil || client == nil {
		return &StepResult{
			Reply:     "No encontré una cuenta con este número 🔍 ¿Cuál es el teléfono con el que te registraste?",
			NextState: domain.StateAwaitingPhone,
		}, nil
	}
	fctx.Client = client
	return &StepResult{
		Reply:     fmt.Sprintf("Hola %s 🙂 Confírmame tu contraseña para entrar a tu cuenta.", client.Name),
		NextState: domain.StateAwaitingPassword,
	}, nil
}

// routeProfileUpdate picks the profile field the user wants to change.
func (e *SalesFlowEngine) routeProfileUpdate(fctx *FlowContext) (*StepResult, error) {
	t := e.fallback.norm.Normalize(fctx.Text)
	switch {
	case containsAny(t, "correo", "email", "mail"):
		return &StepResult{Reply: "Claro 🙂 ¿Cuál es tu nuevo correo?", NextState: domain.StateAwaitingNewEmail}, nil
	case containsAny(t, "direccion", "domicilio"):
		return &StepResult{Reply: "Claro 🙂 ¿Cuál es tu nueva dirección?", NextState: domain.StateAwaitingNewAddress}, nil
	case containsAny(t, "telefono", "celular", "numero"):
		return &StepResult{Reply: "Claro 🙂 ¿Cuál es tu nuevo número? Escríbelo con código de país.", NextState: domain.StateAwaitingNewPhone}, nil
	default:
		return &StepResult{Reply: "¿Qué dato quieres actualizar? Puedo cambiar tu teléfono, dirección o correo 🙂"}, nil
	}
}

func (e *SalesFlowEngine) stepCollectPhone(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	phone := fctx.Intent.Fields["phone"]
	if phone == "" {
		return &StepResult{Reply: "No reconocí el número 😅 Escríbelo con código de país, por ejemplo +51987654321."}, nil
	}
	client, err := e.clients.FindByPhone(ctx, phone)
	if err != nil || client == nil {
		return &StepResult{
			Reply:     "No encontré una cuenta con ese número. Registremos una: ¿cuál es tu nombre completo?",
			NextState: domain.StateAwaitingRegistrationName,
		}, nil
	}
	fctx.Client = client
	return &StepResult{
		Reply:     fmt.Sprintf("Encontré la cuenta de %s. ¿Eres tú? Responde sí o no.", client.Name),
		NextState: domain.StateAwaitingClientConfirmation,
	}, nil
}

func (e *SalesFlowEngine) stepCollectPassword(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	client, err := e.clients.FindByPhone(ctx, fctx.Phone)
	if err != nil || client == nil {
		return &StepResult{
			Reply:     "No encontré tu cuenta 😔 Registremos una: ¿cuál es tu nombre completo?",
			NextState: domain.StateAwaitingRegistrationName,
		}, nil
	}
	if !e.passwords.Verify(client.PasswordHash, strings.TrimSpace(fctx.Text)) {
		return &StepResult{Reply: "La contraseña no coincide 😔 Intenta de nuevo."}, nil
	}
	fctx.Client = client
	return &StepResult{
		Reply:     fmt.Sprintf("¡Bienvenido de nuevo, %s! 🙌 ¿Qué producto buscas?", client.Name),
		NextState: domain.StateOrderInProgress,
		Order:     carryOrder(fctx.Session),
	}, nil
}

// stepCollectRegistration walks the registration chain one field per turn,
// stashing captured values in the order payload's fields until the account
// can be created.
func (e *SalesFlowEngine) stepCollectRegistration(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	value := strings.TrimSpace(fctx.Text)
	if value == "" {
		return &StepResult{Reply: "No recibí el dato 😅 Inténtalo otra vez."}, nil
	}

	order := carryOrder(fctx.Session)
	switch fctx.Session.State {
	case domain.StateAwaitingRegistrationName:
		setField(order, "reg_name", value)
		return &StepResult{Reply: "Gracias 🙂 Ahora tu DNI (8 dígitos):", NextState: domain.StateAwaitingRegistrationDNI, Order: order}, nil

	case domain.StateAwaitingRegistrationDNI:
		dni := fctx.Intent.Fields["dni"]
		if dni == "" {
			return &StepResult{Reply: "El DNI debe tener 8 dígitos. Inténtalo otra vez 🙂"}, nil
		}
		setField(order, "reg_dni", dni)
		return &StepResult{Reply: "Perfecto. ¿Cuál es tu correo electrónico?", NextState: domain.StateAwaitingRegistrationEmail, Order: order}, nil

	case domain.StateAwaitingRegistrationEmail:
		email := fctx.Intent.Fields["email"]
		if email == "" {
			return &StepResult{Reply: "Ese correo no parece válido 😅 Inténtalo otra vez."}, nil
		}
		setField(order, "reg_email", email)
		return &StepResult{Reply: "Último paso: elige una contraseña para tu cuenta 🔑", NextState: domain.StateAwaitingRegistrationPass, Order: order}, nil

	case domain.StateAwaitingRegistrationPass:
		hash, err := e.passwords.Hash(value)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		client := &domain.Client{
			Phone:        fctx.Phone,
			Name:         getField(order, "reg_name"),
			DNI:          getField(order, "reg_dni"),
			Email:        getField(order, "reg_email"),
			PasswordHash: hash,
		}
		err = e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
			return e.clients.Create(opCtx, client)
		})
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		fctx.Client = client
		clearRegistrationFields(order)
		reply := fmt.Sprintf("¡Cuenta creada, %s! 🎉", client.Name)
		if len(order.Lines) > 0 {
			return &StepResult{
				Reply:     reply + " ¿Cómo pagas? Opciones: efectivo, tarjeta, yape o plin.",
				NextState: domain.StateAwaitingPaymentMethod,
				Order:     order,
			}, nil
		}
		return &StepResult{
			Reply:     reply + " ¿Qué producto estás buscando?",
			NextState: domain.StateOrderInProgress,
			Order:     order,
		}, nil
	}
	return &StepResult{Reply: "Sigamos 🙂"}, nil
}

func (e *SalesFlowEngine) stepCollectPaymentMethod(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	method := parsePaymentMethod(fctx.Text)
	if method == "" {
		return &StepResult{Reply: "No reconocí el método de pago 😅 Opciones: efectivo, tarjeta, yape o plin."}, nil
	}
	order := carryOrder(fctx.Session)
	order.PaymentMethod = method
	return e.stepCloseSale(ctx, fctx, order)
}

// --- step 8: close sale ---------------------------------------------------

// stepCloseSale creates the backend order and appends each line. The closure
// is resumable: lines that reached the backend before a failure stay
// recorded against the partial order and a retry continues where it left off
// instead of rolling back.
func (e *SalesFlowEngine) stepCloseSale(ctx context.Context, fctx *FlowContext, order *domain.PendingOrder) (*StepResult, error) {
	if order == nil || len(order.Lines) == 0 {
		return &StepResult{Reply: "No hay productos en el pedido 🤔 Dime qué buscas y lo armamos."}, nil
	}

	var clientID uint
	if fctx.Client != nil {
		clientID = fctx.Client.ID
	} else if client, err := e.clients.FindByPhone(ctx, fctx.Phone); err == nil && client != nil {
		clientID = client.ID
	}

	if order.BackendOrderID == 0 {
		var orderID uint
		err := e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
			var cErr error
			orderID, cErr = e.orders.CreateOrder(opCtx, clientID, order.Ref)
			return cErr
		})
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		order.BackendOrderID = orderID
		// Persist the backend order id right away; a later failure must not
		// lose it or the retry would create a second order.
		e.persistClosureProgress(ctx, fctx, order)
	}

	for i := order.AppendedLines; i < len(order.Lines); i++ {
		line := order.Lines[i]
		err := e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
			return e.orders.AppendLine(opCtx, order.BackendOrderID, line)
		})
		if err != nil {
			order.AppendedLines = i
			e.persistClosureProgress(ctx, fctx, order)
			return nil, fmt.Errorf("append line %d: %w", i+1, err)
		}
		order.AppendedLines = i + 1
	}

	err := e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
		return e.orders.ConfirmOrder(opCtx, order.BackendOrderID, order.PaymentMethod)
	})
	if err != nil {
		e.persistClosureProgress(ctx, fctx, order)
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	order.Status = domain.OrderConfirmed

	if err := e.audit.Record(ctx, fctx.Phone, order); err != nil {
		e.logger.Warn("order audit snapshot failed",
			slog.String("phone", fctx.Phone), slog.String("error", err.Error()))
	}

	reply := fmt.Sprintf("¡Pedido confirmado! 🎉 Total: S/ %.2f, pago por %s.\nEnvíame tu comprobante o escribe *pagado* cuando completes el pago.",
		order.Total, order.PaymentMethod)
	return &StepResult{Reply: reply, NextState: domain.StateAwaitingPayment, Order: order}, nil
}

// persistClosureProgress saves the partially closed order in place, so the
// next closure attempt resumes against the same backend order and lines.
func (e *SalesFlowEngine) persistClosureProgress(ctx context.Context, fctx *FlowContext, order *domain.PendingOrder) {
	if err := e.sessions.SetState(ctx, fctx.Phone, fctx.Session.State, order); err != nil {
		e.logger.Error("failed to persist partial order",
			slog.String("phone", fctx.Phone), slog.String("error", err.Error()))
	}
}

func (e *SalesFlowEngine) stepAwaitPayment(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	normalized := e.fallback.norm.Normalize(fctx.Text)
	if fctx.Intent.Name == IntentConfirm || containsWord(normalized, "pagado") || containsWord(normalized, "pague") {
		return &StepResult{
			Reply:     "¡Pago registrado! ✅ Tu pedido está en preparación.",
			NextState: domain.StatePaymentConfirmed,
			Order:     carryOrder(fctx.Session),
		}, nil
	}
	if fctx.Intent.Name == IntentCancel {
		return &StepResult{
			Reply:     "¿Seguro que quieres cancelar el pedido? Responde sí o no.",
			NextState: domain.StateAwaitingCancelConfirmation,
		}, nil
	}
	return &StepResult{Reply: "Cuando completes el pago escribe *pagado* 🙂"}, nil
}

// --- step 9: follow up ----------------------------------------------------

func (e *SalesFlowEngine) stepFollowUp(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	if err := e.sessions.Clear(ctx, fctx.Phone); err != nil {
		return nil, err
	}
	e.guard.Reset(fctx.Phone)
	return &StepResult{
		Reply: "¡Gracias por tu compra! 🙌 Te avisaremos cuando tu pedido esté en camino. Escríbeme cuando quieras hacer otro pedido.",
	}, nil
}

// --- cancellation and profile updates ------------------------------------

func (e *SalesFlowEngine) stepCancelConfirmation(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	switch fctx.Intent.Name {
	case IntentConfirm:
		order := fctx.Session.CurrentOrder
		if order != nil && order.BackendOrderID != 0 {
			err := e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
				return e.orders.CancelOrder(opCtx, order.BackendOrderID)
			})
			if err != nil {
				return nil, fmt.Errorf("cancel order: %w", err)
			}
		}
		if err := e.sessions.Clear(ctx, fctx.Phone); err != nil {
			return nil, err
		}
		e.guard.Reset(fctx.Phone)
		return &StepResult{Reply: "Pedido cancelado ✅ Cuando quieras volvemos a empezar 🙂"}, nil
	case IntentDeny:
		return &StepResult{
			Reply:     "¡Seguimos! 🙌 ¿Agrego algo más o confirmamos?",
			NextState: domain.StateOrderInProgress,
		}, nil
	default:
		return &StepResult{Reply: "¿Cancelo el pedido? Responde sí o no 🙂"}, nil
	}
}

func (e *SalesFlowEngine) stepUpdateProfile(ctx context.Context, fctx *FlowContext) (*StepResult, error) {
	client, err := e.clients.FindByPhone(ctx, fctx.Phone)
	if err != nil || client == nil {
		return &StepResult{
			Reply:     "No encontré tu cuenta 😔 ¿Registramos una? Dime tu nombre completo.",
			NextState: domain.StateAwaitingRegistrationName,
		}, nil
	}

	switch fctx.Session.State {
	case domain.StateAwaitingNewPhone:
		phone := fctx.Intent.Fields["phone"]
		if phone == "" {
			return &StepResult{Reply: "No reconocí el número 😅 Escríbelo con código de país."}, nil
		}
		client.Phone = phone
	case domain.StateAwaitingNewAddress:
		client.Address = strings.TrimSpace(fctx.Text)
	case domain.StateAwaitingNewEmail:
		email := fctx.Intent.Fields["email"]
		if email == "" {
			return &StepResult{Reply: "Ese correo no parece válido 😅 Inténtalo otra vez."}, nil
		}
		client.Email = email
	}

	err = e.guard.WithRetry(ctx, e.cfg.RetryAttempts, e.cfg.RetryDelay, func(opCtx context.Context) error {
		return e.clients.Update(opCtx, client)
	})
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return &StepResult{Reply: "¡Datos actualizados! ✅", NextState: domain.StateIdle}, nil
}

// --- helpers --------------------------------------------------------------

func newPendingOrder() *domain.PendingOrder {
	return &domain.PendingOrder{
		Version: domain.OrderPayloadVersion,
		Ref:     uuid.NewString(),
		Status:  domain.OrderPending,
	}
}

func carryOrder(session *domain.Session) *domain.PendingOrder {
	if session.CurrentOrder != nil {
		return session.CurrentOrder
	}
	return newPendingOrder()
}

func orderTotal(order *domain.PendingOrder) float64 {
	var total float64
	for _, l := range order.Lines {
		total += l.Subtotal
	}
	return total
}

func validationReply(v *domain.ValidationResult) string {
	var b strings.Builder
	b.WriteString("No pude validar el pedido 😔\n")
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "• %s\n", e)
	}
	b.WriteString("¿Ajustamos cantidades o buscamos otra opción?")
	return b.String()
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}

func parsePaymentMethod(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "efectivo"), strings.Contains(t, "cash"):
		return "efectivo"
	case strings.Contains(t, "tarjeta"), strings.Contains(t, "card"):
		return "tarjeta"
	case strings.Contains(t, "yape"):
		return "yape"
	case strings.Contains(t, "plin"):
		return "plin"
	case strings.Contains(t, "transferencia"):
		return "transferencia"
	}
	return ""
}

// setField stashes a transient value inside the order payload.
func setField(order *domain.PendingOrder, key, value string) {
	if order.Fields == nil {
		order.Fields = map[string]string{}
	}
	order.Fields[key] = value
}

func getField(order *domain.PendingOrder, key string) string {
	if order.Fields == nil {
		return ""
	}
	return order.Fields[key]
}

func clearRegistrationFields(order *domain.PendingOrder) {
	for _, k := range []string{"reg_name", "reg_dni", "reg_email"} {
		delete(order.Fields, k)
	}
}
