package domain

// ConvState identifies where a conversation currently sits in the sales pipeline.
type ConvState string

const (
	StateIdle                       ConvState = "idle"
	StateAwaitingClientConfirmation ConvState = "awaiting_client_confirmation"
	StateAwaitingPhone              ConvState = "awaiting_phone"
	StateAwaitingPassword           ConvState = "awaiting_password"
	StateAwaitingRegistrationName   ConvState = "awaiting_registration_name"
	StateAwaitingRegistrationDNI    ConvState = "awaiting_registration_dni"
	StateAwaitingRegistrationEmail  ConvState = "awaiting_registration_email"
	StateAwaitingRegistrationPass   ConvState = "awaiting_registration_password"
	StateOrderInProgress            ConvState = "order_in_progress"
	StateAwaitingConfirmation       ConvState = "awaiting_confirmation"
	StateAwaitingPaymentMethod      ConvState = "awaiting_payment_method"
	StateAwaitingPayment            ConvState = "awaiting_payment"
	StatePaymentConfirmed           ConvState = "payment_confirmed"
	StateCompleted                  ConvState = "completed"
	StateAwaitingCancelConfirmation ConvState = "awaiting_cancel_confirmation"
	StateAwaitingNewPhone           ConvState = "awaiting_new_phone"
	StateAwaitingNewAddress         ConvState = "awaiting_new_address"
	StateAwaitingNewEmail           ConvState = "awaiting_new_email"
)

// credentialRank orders the credential-collection states along the pipeline.
// States absent from the map are not credential states. Ranks only matter
// relative to each other: a session may never be routed back to a
// lower-ranked credential state once it has moved past it.
var credentialRank = map[ConvState]int{
	StateAwaitingPhone:             1,
	StateAwaitingPassword:          2,
	StateAwaitingRegistrationName:  2,
	StateAwaitingRegistrationDNI:   3,
	StateAwaitingRegistrationEmail: 4,
	StateAwaitingRegistrationPass:  5,
}

// Payment-phase states share a rank above every credential state, so a
// session that already identified its client can never be routed back into
// credential collection. Browsing and confirmation states rank below the
// credential states because identification happens after order confirmation.
const postCredentialRank = 10

func stageRank(s ConvState) int {
	if r, ok := credentialRank[s]; ok {
		return r
	}
	switch s {
	case StateAwaitingPaymentMethod, StateAwaitingPayment, StatePaymentConfirmed, StateCompleted:
		return postCredentialRank
	default:
		return 0
	}
}

// SafeStates are the reset points the guard may route a stuck conversation to.
var SafeStates = []ConvState{
	StateIdle,
	StateAwaitingPhone,
	StateAwaitingClientConfirmation,
}

// IsSafeState reports whether s is a valid recovery target.
func IsSafeState(s ConvState) bool {
	for _, safe := range SafeStates {
		if s == safe {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving from one state to another is allowed.
// Transitions into idle or awaiting_client_confirmation are always permitted;
// they are the universal reset points. A transition into a credential state is
// rejected when the session already sits at a later pipeline position, so a
// misclassified message can never re-request information already captured.
func CanTransition(from, to ConvState) bool {
	if to == StateIdle || to == StateAwaitingClientConfirmation {
		return true
	}
	toRank, toIsCredential := credentialRank[to]
	if !toIsCredential {
		return true
	}
	return stageRank(from) <= toRank
}
