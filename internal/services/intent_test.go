package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackClassify(t *testing.T) {
	c := NewFallbackClassifier(NewNormalizer())

	tests := []struct {
		name string
		text string
		want string
	}{
		{"greeting", "hola buenas tardes", IntentGreeting},
		{"buy", "quiero comprar un mouse", IntentBuy},
		{"buy with typos", "kiero 2 maus logitec", IntentBuy},
		{"catalog query", "tienen teclados? cuanto cuesta", IntentQueryCatalog},
		{"confirm", "si confirmo dale", IntentConfirm},
		{"deny", "mejor no", IntentDeny},
		{"cancel", "olvidalo cancela eso", IntentCancel},
		{"login", "quiero ingresar a mi cuenta", IntentLogin},
		{"profile update", "necesito cambiar mi correo", IntentUpdateProfile},
		{"bare contact field", "ana.torres@example.com", IntentProvideData},
		{"farewell", "gracias hasta luego", IntentFarewell},
		{"noise", "xyzzy plugh", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := c.Classify(tt.text)
			require.NotNil(t, intent)
			assert.Equal(t, tt.want, intent.Name)
		})
	}
}

func TestFallbackClassifyTiesAreDeterministic(t *testing.T) {
	c := NewFallbackClassifier(NewNormalizer())

	// "si" and "no" each score one hit; the fixed evaluation order must
	// resolve the tie the same way on every run.
	for i := 0; i < 20; i++ {
		intent := c.Classify("si no")
		assert.Equal(t, IntentConfirm, intent.Name)
	}
}

func TestFallbackClassifyConfidence(t *testing.T) {
	c := NewFallbackClassifier(NewNormalizer())

	unknown := c.Classify("xyzzy")
	assert.Equal(t, 0.2, unknown.Confidence)

	hit := c.Classify("quiero un mouse")
	assert.GreaterOrEqual(t, hit.Confidence, 0.5)
	assert.LessOrEqual(t, hit.Confidence, 0.9)
}

func TestFallbackClassifyExtractsProduct(t *testing.T) {
	c := NewFallbackClassifier(NewNormalizer())

	intent := c.Classify("kiero 2 maus logitec")
	require.Len(t, intent.Products, 1)
	assert.Equal(t, "mouse logitech", intent.Products[0].Name)
	assert.Equal(t, 2, intent.Products[0].Quantity)

	spelled := c.Classify("quiero dos teclados mecanicos")
	require.Len(t, spelled.Products, 1)
	assert.Equal(t, 2, spelled.Products[0].Quantity)

	noQuantity := c.Classify("quiero un monitor")
	require.Len(t, noQuantity.Products, 1)
	assert.Equal(t, 1, noQuantity.Products[0].Quantity)
}

func TestFallbackClassifyExtractsFields(t *testing.T) {
	c := NewFallbackClassifier(NewNormalizer())

	intent := c.Classify("mi numero es +51987654321")
	assert.Equal(t, "+51987654321", intent.Fields["phone"])

	intent = c.Classify("mi correo es juan.perez@example.com")
	assert.Equal(t, "juan.perez@example.com", intent.Fields["email"])

	intent = c.Classify("mi dni es 45678912")
	assert.Equal(t, "45678912", intent.Fields["dni"])
}
