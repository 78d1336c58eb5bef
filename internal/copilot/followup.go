package copilot

import (
	"strings"
)

// ShortAnswer classifies a short operator reply to a pending yes/no intent
type ShortAnswer int

const (
	AnswerNone ShortAnswer = iota
	AnswerAffirmative
	AnswerNegative
)

// Short-answer vocabularies. Operators write in Spanish or English; answers
// are matched whole after normalization, never as substrings of longer
// messages.
var (
	affirmativeAnswers = map[string]bool{
		"si": true, "sí": true, "sip": true, "claro": true, "dale": true,
		"va": true, "de una": true, "listo": true, "hazlo": true, "bueno": true,
		"yes": true, "y": true, "yep": true, "yeah": true, "sure": true,
		"ok": true, "okay": true, "go ahead": true, "do it": true,
	}
	negativeAnswers = map[string]bool{
		"no": true, "nop": true, "nope": true, "mejor no": true,
		"no gracias": true, "cancelar": true, "cancela": true, "cancel": true,
		"dejalo": true, "déjalo": true, "not now": true, "ahora no": true,
	}
)

// maxShortAnswerLen bounds what counts as a short answer; anything longer
// falls through to normal classification
const maxShortAnswerLen = 20

// DetectShortAnswer matches a message against the affirmative/negative
// vocabularies. Anything that is not an exact short answer returns AnswerNone.
func DetectShortAnswer(message string) ShortAnswer {
	normalized := normalizeShortAnswer(message)
	if normalized == "" || len(normalized) > maxShortAnswerLen {
		return AnswerNone
	}
	if affirmativeAnswers[normalized] {
		return AnswerAffirmative
	}
	if negativeAnswers[normalized] {
		return AnswerNegative
	}
	return AnswerNone
}

func normalizeShortAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!¡¿?,;")
	return strings.Join(strings.Fields(s), " ")
}
