package analysis

import (
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

var highRiskKeywords = []string{
	"intihar", "ölmek", "yaşamak istemiyorum", "bitirmek",
	"kendimi öldürmek", "ölüm", "son", "bitiş",
}

var mediumRiskKeywords = []string{
	"umutsuz", "çaresiz", "değersiz", "yetersiz",
	"kimse beni sevmiyor", "herkes benden nefret ediyor",
}

// Single keywords at least this long also match suffixed forms
// (intiharı, ölmekten). Shorter ones must match a whole word so that
// "son" does not fire on "sonra".
const stemMatchMinRunes = 5

// ScreenRisk returns the highest risk level implied by keywords in text, or
// "" when none match.
func ScreenRisk(text string) string {
	words := tokenize(text)
	if len(words) == 0 {
		return ""
	}
	joined := " " + strings.Join(words, " ") + " "

	if matchesAny(words, joined, highRiskKeywords) {
		return extractor.RiskHigh
	}
	if matchesAny(words, joined, mediumRiskKeywords) {
		return extractor.RiskMedium
	}
	return ""
}

func matchesAny(words []string, joined string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(joined, " "+kw) {
				return true
			}
			continue
		}
		stem := len([]rune(kw)) >= stemMatchMinRunes
		for _, w := range words {
			if w == kw || (stem && strings.HasPrefix(w, kw)) {
				return true
			}
		}
	}
	return false
}

func tokenize(text string) []string {
	text = strings.ReplaceAll(text, "İ", "i")
	text = strings.ReplaceAll(text, "I", "ı")
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

var riskRank = map[string]int{
	extractor.RiskUnknown: 0,
	extractor.RiskLow:     1,
	extractor.RiskMedium:  2,
	extractor.RiskHigh:    3,
}

// escalates reports whether moving from current to candidate raises risk.
// The screen never lowers a model-assigned level.
func escalates(current, candidate string) bool {
	if candidate == "" {
		return false
	}
	return riskRank[candidate] > riskRank[current]
}
