package services

import (
	"strings"

	"github.com/xrash/smetrics"
)

// phoneticClass groups Spanish letters that sound alike. The encoding is a
// simplified Soundex: keep the (class-folded) first letter, then append class
// codes for the remaining consonants, skipping vowels and silent letters,
// collapsing runs, truncated to four characters.
var phoneticClass = map[byte]byte{
	'b': '1', 'v': '1', 'p': '1', 'f': '1',
	'c': '2', 's': '2', 'z': '2', 'x': '2', 'k': '2', 'q': '2',
	'd': '3', 't': '3',
	'g': '4', 'j': '4',
	'l': '5',
	'm': '6', 'n': '6',
	'r': '7',
	'y': '8',
}

// firstLetterFold maps sound-alike initials onto one representative so that
// e.g. "kasa" and "casa" share a key.
var firstLetterFold = map[byte]byte{
	'v': 'b', 'k': 'c', 'q': 'c', 'z': 's', 'j': 'g',
}

// PhoneticKey encodes one normalized word into its phonetic fingerprint.
// Multi-word input is encoded per word joined with "-". Empty input yields "".
func PhoneticKey(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	keys := make([]string, 0, len(words))
	for _, w := range words {
		if k := encodeWord(w); k != "" {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, "-")
}

func encodeWord(w string) string {
	w = foldDigraphs(w)
	if w == "" {
		return ""
	}
	first := w[0]
	if folded, ok := firstLetterFold[first]; ok {
		first = folded
	}
	key := []byte{first}
	var prev byte
	if c, ok := phoneticClass[w[0]]; ok {
		prev = c
	}
	for i := 1; i < len(w) && len(key) < 4; i++ {
		c, ok := phoneticClass[w[i]]
		if !ok {
			// vowel, h or digit: breaks a run but emits nothing
			prev = 0
			continue
		}
		if c != prev {
			key = append(key, c)
		}
		prev = c
	}
	for len(key) < 4 {
		key = append(key, '0')
	}
	return string(key)
}

// foldDigraphs rewrites Spanish digraphs that behave as one sound.
func foldDigraphs(w string) string {
	w = strings.ReplaceAll(w, "ll", "y")
	w = strings.ReplaceAll(w, "rr", "r")
	w = strings.ReplaceAll(w, "ch", "x")
	w = strings.ReplaceAll(w, "qu", "k")
	w = strings.ReplaceAll(w, "gu", "g")
	return w
}

// JaroWinkler returns the Jaro-Winkler similarity of two strings in [0,1],
// with the standard 0.7 boost threshold and 4-letter prefix.
func JaroWinkler(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Jaccard returns the token-set overlap of two token slices in [0,1].
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
