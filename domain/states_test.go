package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ConvState
		to   ConvState
		want bool
	}{
		{"idle to phone", StateIdle, StateAwaitingPhone, true},
		{"phone to password", StateAwaitingPhone, StateAwaitingPassword, true},
		{"password back to phone", StateAwaitingPassword, StateAwaitingPhone, false},
		{"registration dni back to name", StateAwaitingRegistrationDNI, StateAwaitingRegistrationName, false},
		{"registration name forward to dni", StateAwaitingRegistrationName, StateAwaitingRegistrationDNI, true},
		{"order into phone collection", StateOrderInProgress, StateAwaitingPhone, true},
		{"payment back to registration", StateAwaitingPayment, StateAwaitingRegistrationEmail, false},
		{"payment back to phone", StateAwaitingPayment, StateAwaitingPhone, false},
		{"anything to idle", StateAwaitingPayment, StateIdle, true},
		{"anything to client confirmation", StateAwaitingPayment, StateAwaitingClientConfirmation, true},
		{"order to confirmation", StateOrderInProgress, StateAwaitingConfirmation, true},
		{"confirmation to payment method", StateAwaitingConfirmation, StateAwaitingPaymentMethod, true},
		{"confirmation into registration name", StateAwaitingConfirmation, StateAwaitingRegistrationName, true},
		{"same credential state", StateAwaitingPassword, StateAwaitingPassword, true},
		{"idle into registration", StateIdle, StateAwaitingRegistrationName, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsSafeState(t *testing.T) {
	for _, s := range SafeStates {
		if !IsSafeState(s) {
			t.Errorf("IsSafeState(%s) = false, want true", s)
		}
	}
	for _, s := range []ConvState{StateOrderInProgress, StateAwaitingPayment, StateAwaitingRegistrationDNI} {
		if IsSafeState(s) {
			t.Errorf("IsSafeState(%s) = true, want false", s)
		}
	}
}
