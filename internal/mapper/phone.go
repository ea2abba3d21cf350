package mapper

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// intlNumberPattern matches an international-looking digit run: optional
// leading +, 11 to 15 digits.
var intlNumberPattern = regexp.MustCompile(`\+?[0-9]{11,15}`)

// vendorNumberPattern matches the chat-channel prefixed form Kommo embeds in
// widget payloads, e.g. "whatsapp:+5511988887777".
var vendorNumberPattern = regexp.MustCompile(`(?i)whatsapp:\s*\+?([0-9]{8,15})`)

// minPhoneDigits is the minimum digit count that makes a key-probed value a
// phone candidate; formatted numbers spread their digits across separators.
const minPhoneDigits = 8

// phoneKeyTokens are the key-name fragments treated as phone-bearing during
// the recursive walk, in no particular order; the walk itself is ordered.
var phoneKeyTokens = []string{"phone", "telefone", "mobile", "value", "tel"}

// PhoneExtractor locates a customer phone number inside an arbitrary payload
// tree. Best-effort and order-sensitive: the only guarantees are termination
// and determinism for identical input.
type PhoneExtractor struct {
	countryCode string
}

func NewPhoneExtractor(countryCode string) *PhoneExtractor {
	return &PhoneExtractor{countryCode: countryCode}
}

// Extract runs the priority chain and returns nil when nothing matches.
//
//  1. Longest international-looking digit run anywhere in the serialized
//     payload. Longer runs are less likely to be truncated fragments.
//  2. Vendor-prefixed number, prefix stripped.
//  3. Recursive key-name search for phone-bearing keys, normalized to
//     +<countrycode><digits>.
func (e *PhoneExtractor) Extract(payload any) *string {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	if match := longestMatch(intlNumberPattern.FindAllString(string(serialized), -1)); match != "" {
		return &match
	}

	if groups := vendorNumberPattern.FindStringSubmatch(string(serialized)); groups != nil {
		digits := groups[1]
		return &digits
	}

	if raw, ok := findPhoneByKey(payload); ok {
		normalized := e.normalize(raw)
		return &normalized
	}

	return nil
}

func longestMatch(matches []string) string {
	best := ""
	for _, m := range matches {
		if len(m) > len(best) {
			best = m
		}
	}
	return best
}

// findPhoneByKey walks mapping and sequence nodes in sorted-key order and
// returns the first string under a phone-related key that carries a long
// enough digit run.
func findPhoneByKey(node any) (string, bool) {
	switch n := node.(type) {
	case map[string]any:
		for _, key := range sortedKeys(n) {
			if isPhoneKey(key) {
				if s, ok := n[key].(string); ok && countDigits(s) >= minPhoneDigits {
					return s, true
				}
			}
		}
		for _, key := range sortedKeys(n) {
			if s, ok := findPhoneByKey(n[key]); ok {
				return s, true
			}
		}
	case []any:
		for _, item := range n {
			if s, ok := findPhoneByKey(item); ok {
				return s, true
			}
		}
	}
	return "", false
}

func countDigits(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}

func isPhoneKey(key string) bool {
	lower := strings.ToLower(key)
	for _, token := range phoneKeyTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// normalize strips formatting and produces a +-prefixed international number,
// prepending the configured country code to national numbers.
func (e *PhoneExtractor) normalize(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if strings.HasPrefix(number, e.countryCode) {
		return "+" + number
	}
	return "+" + e.countryCode + number
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
