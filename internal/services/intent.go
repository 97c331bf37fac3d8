package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// Intent names shared by the external NLU collaborator and the local
// fallback classifier.
const (
	IntentGreeting      = "greeting"
	IntentBuy           = "buy"
	IntentQueryCatalog  = "query_catalog"
	IntentConfirm       = "confirm"
	IntentDeny          = "deny"
	IntentCancel        = "cancel"
	IntentLogin         = "login"
	IntentUpdateProfile = "update_profile"
	IntentProvideData   = "provide_data"
	IntentFarewell      = "farewell"
	IntentUnknown       = "unknown"
)

var (
	reDigits = regexp.MustCompile(`\b([0-9]{1,4})\b`)
	rePhone  = regexp.MustCompile(`\b\+?[0-9]{9,15}\b`)
	reEmail  = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	reDNI    = regexp.MustCompile(`\b[0-9]{8}\b`)
)

// numberWords maps spelled-out Spanish quantities onto digits.
var numberWords = map[string]int{
	"un": 1, "uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4,
	"cinco": 5, "seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
	"once": 11, "doce": 12, "quince": 15, "veinte": 20,
}

// intentKeywords scores each intent by keyword hits over normalized text.
var intentKeywords = map[string][]string{
	IntentGreeting:      {"hola", "buenas", "buenos dias", "buenas tardes", "buenas noches", "saludos"},
	IntentBuy:           {"quiero", "comprar", "pedir", "pedido", "llevar", "venta", "vendeme", "ordenar", "agregar", "añadir", "anadir"},
	IntentQueryCatalog:  {"tienen", "tienes", "hay", "precio", "cuanto cuesta", "cuanto esta", "catalogo", "productos", "stock", "disponible", "busco", "mostrar"},
	IntentConfirm:       {"si", "sip", "claro", "confirmo", "confirmar", "dale", "ok", "okey", "listo", "correcto", "exacto", "de acuerdo"},
	IntentDeny:          {"no", "nop", "negativo", "todavia no", "aun no", "mejor no"},
	IntentCancel:        {"cancelar", "cancela", "anular", "ya no quiero", "olvidalo", "dejalo"},
	IntentLogin:         {"iniciar sesion", "ingresar", "acceder", "mi cuenta", "login"},
	IntentUpdateProfile: {"actualizar", "actualiza", "cambiar", "cambia", "modificar", "corregir", "mis datos"},
	IntentFarewell:      {"gracias", "adios", "chau", "hasta luego", "nos vemos"},
}

// intentOrder fixes the evaluation order so equal-hit ties always resolve the
// same way: the more specific intents come first.
var intentOrder = []string{
	IntentCancel,
	IntentUpdateProfile,
	IntentLogin,
	IntentConfirm,
	IntentDeny,
	IntentFarewell,
	IntentBuy,
	IntentQueryCatalog,
	IntentGreeting,
}

// FallbackClassifier is the local keyword classifier used when the external
// NLU collaborator is absent, times out or answers with low confidence. It
// always produces a non-nil intent with a confidence score.
type FallbackClassifier struct {
	norm *Normalizer
}

// NewFallbackClassifier builds the local classifier.
func NewFallbackClassifier(norm *Normalizer) *FallbackClassifier {
	return &FallbackClassifier{norm: norm}
}

// Classify scores keyword hits over the normalized text and extracts
// quantities, contact fields and a product mention. It never fails: text
// with no signal yields the unknown intent with low confidence.
func (c *FallbackClassifier) Classify(text string) *domain.Intent {
	raw := strings.ToLower(strings.TrimSpace(text))
	normalized := c.norm.Normalize(text)

	best := IntentUnknown
	bestHits := 0
	for _, name := range intentOrder {
		hits := 0
		for _, w := range intentKeywords[name] {
			if containsWord(normalized, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}

	confidence := 0.2
	if bestHits > 0 {
		confidence = 0.5 + 0.1*float64(bestHits)
		if confidence > 0.9 {
			confidence = 0.9
		}
	}

	intent := &domain.Intent{
		Name:       best,
		Confidence: confidence,
		Fields:     map[string]string{},
	}

	if phone := rePhone.FindString(raw); phone != "" {
		intent.Fields["phone"] = phone
	}
	if email := reEmail.FindString(raw); email != "" {
		intent.Fields["email"] = email
	}
	if dni := reDNI.FindString(normalized); dni != "" && intent.Fields["phone"] != dni {
		intent.Fields["dni"] = dni
	}

	// A message with no keyword signal but an extracted contact field is the
	// user answering a data prompt.
	if intent.Name == IntentUnknown && len(intent.Fields) > 0 {
		intent.Name = IntentProvideData
		intent.Confidence = 0.6
	}

	if best == IntentBuy || best == IntentQueryCatalog {
		if p := c.extractProduct(text, normalized); p != nil {
			intent.Products = append(intent.Products, *p)
		}
	}
	return intent
}

// extractProduct pulls the product mention and quantity out of a buy or
// catalog query.
func (c *FallbackClassifier) extractProduct(raw, normalized string) *domain.ExtractedProduct {
	quantity := 1
	if m := reDigits.FindString(normalized); m != "" {
		if q, err := strconv.Atoi(m); err == nil && q > 0 {
			quantity = q
		}
	} else {
		for _, tok := range strings.Fields(normalized) {
			if q, ok := numberWords[tok]; ok {
				quantity = q
				break
			}
		}
	}

	queryTokens := c.norm.Tokens(raw)
	kept := queryTokens[:0]
	for _, t := range queryTokens {
		if _, isNumber := numberWords[t]; isNumber {
			continue
		}
		if reDigits.MatchString(t) {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil
	}
	return &domain.ExtractedProduct{Name: strings.Join(kept, " "), Quantity: quantity}
}

func containsWord(s, word string) bool {
	return strings.Contains(" "+s+" ", " "+word+" ")
}
