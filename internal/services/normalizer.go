package services

import (
	"strings"
	"unicode"
)

// correction maps a noisy surface form (a word or a multi-word phrase) to its
// canonical form. Tables are evaluated in order through one generic
// substitution pass, so the correction data stays declarative and testable
// without touching control flow.
type correction struct {
	From string
	To   string
}

// voiceFillers are transcription noise tokens removed before any correction.
var voiceFillers = []correction{
	{"eh", ""}, {"ehh", ""}, {"em", ""}, {"mmm", ""}, {"mm", ""},
	{"aja", ""}, {"ajam", ""}, {"o sea", ""}, {"osea", ""},
	{"este este", "este"}, {"pues", ""}, {"verdad", ""},
}

// misspellings corrects frequent typos and speech-to-text confusions,
// including garbled number words.
var misspellings = []correction{
	{"kiero", "quiero"}, {"qiero", "quiero"}, {"quierro", "quiero"},
	{"ke", "que"}, {"k", "que"}, {"komprar", "comprar"}, {"conprar", "comprar"},
	{"maus", "mouse"}, {"mause", "mouse"}, {"mouze", "mouse"},
	{"teklado", "teclado"}, {"teclao", "teclado"},
	{"awdifonos", "audifonos"}, {"audifonoz", "audifonos"},
	{"selular", "celular"}, {"zelular", "celular"},
	{"imalambrico", "inalambrico"}, {"inalanbrico", "inalambrico"},
	{"ynalambrico", "inalambrico"},
	{"unna", "una"}, {"dose", "doce"}, {"doss", "dos"}, {"trez", "tres"},
	{"sinco", "cinco"}, {"ocho8", "ocho"}, {"beinte", "veinte"},
}

// productAliases folds multi-word marketing names into a canonical form.
var productAliases = []correction{
	{"raton inalambrico", "mouse inalambrico"},
	{"raton optico", "mouse optico"},
	{"compu de escritorio", "pc escritorio"},
	{"computadora de escritorio", "pc escritorio"},
	{"lap top", "laptop"},
	{"note book", "notebook"},
	{"audifonos con microfono", "audifonos microfono"},
}

// brandFixes corrects brand misspellings.
var brandFixes = []correction{
	{"logitec", "logitech"}, {"lojitech", "logitech"}, {"logiteck", "logitech"},
	{"samsun", "samsung"}, {"samsumg", "samsung"},
	{"genios", "genius"}, {"asuz", "asus"}, {"azus", "asus"},
	{"lenobo", "lenovo"}, {"jp", "hp"},
}

// categorySynonyms folds colloquial category names into catalog categories.
var categorySynonyms = []correction{
	{"raton", "mouse"}, {"ratones", "mouse"},
	{"compu", "computadora"}, {"portatil", "laptop"},
	{"auriculares", "audifonos"}, {"cascos", "audifonos"},
	{"celu", "celular"}, {"telefono", "celular"},
	{"pantalla", "monitor"}, {"parlante", "altavoz"}, {"parlantes", "altavoz"},
}

// queryStopwords are dropped only when normalizing for catalog queries; they
// carry intent, not product identity.
var queryStopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "uno": {}, "una": {},
	"unos": {}, "unas": {}, "de": {}, "del": {}, "al": {}, "a": {}, "en": {},
	"y": {}, "o": {}, "u": {}, "que": {}, "con": {}, "por": {}, "para": {},
	"me": {}, "te": {}, "se": {}, "mi": {}, "tu": {}, "su": {},
	"quiero": {}, "quisiera": {}, "necesito": {}, "busco": {}, "deseo": {},
	"comprar": {}, "dame": {}, "tienen": {}, "tiene": {}, "hay": {},
	"vendes": {}, "venden": {}, "favor": {}, "hola": {}, "buenas": {},
}

// Normalizer cleans noisy user text into a canonical lowercase form. It is a
// pure transformation: it never fails, and unknown input comes back as
// best-effort cleaned text.
type Normalizer struct {
	fillers    []correction
	spelling   []correction
	aliases    []correction
	brands     []correction
	categories []correction
	stopwords  map[string]struct{}
}

// NewNormalizer builds a normalizer with the default correction tables.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		fillers:    voiceFillers,
		spelling:   misspellings,
		aliases:    productAliases,
		brands:     brandFixes,
		categories: categorySynonyms,
		stopwords:  queryStopwords,
	}
}

// Normalize lowercases, strips accents and punctuation, removes voice noise
// and applies the correction tables in order. Idempotent: normalizing an
// already-normalized string returns it unchanged.
func (n *Normalizer) Normalize(text string) string {
	s := basicClean(text)
	if s == "" {
		return ""
	}
	s = applyTable(s, n.fillers)
	s = applyTable(s, n.spelling)
	s = applyTable(s, n.aliases)
	s = applyTable(s, n.brands)
	s = applyTable(s, n.categories)
	return collapseSpaces(s)
}

// NormalizeQuery runs Normalize and additionally drops stopwords, leaving
// only the tokens that identify a product.
func (n *Normalizer) NormalizeQuery(text string) string {
	s := n.Normalize(text)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := n.stopwords[f]; !stop {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// Tokens returns the query tokens of text.
func (n *Normalizer) Tokens(text string) []string {
	q := n.NormalizeQuery(text)
	if q == "" {
		return nil
	}
	return strings.Fields(q)
}

// applyTable substitutes every whole-word or whole-phrase occurrence of each
// table entry, in table order.
func applyTable(s string, table []correction) string {
	padded := " " + s + " "
	for _, c := range table {
		from := " " + c.From + " "
		to := " " + c.To + " "
		if c.To == "" {
			to = " "
		}
		for strings.Contains(padded, from) {
			padded = strings.ReplaceAll(padded, from, to)
		}
	}
	return strings.TrimSpace(padded)
}

// basicClean lowercases, strips accents, replaces punctuation with spaces and
// collapses whitespace.
func basicClean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			if mapped, ok := accentMap[r]; ok {
				b.WriteRune(mapped)
			} else {
				b.WriteByte(' ')
			}
		}
	}
	return collapseSpaces(b.String())
}

var accentMap = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a', 'â': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e', 'ê': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i', 'î': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o', 'ô': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u', 'û': 'u',
	'ñ': 'n', 'ç': 'c',
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
