package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats tracks statistics about JSON repair operations
type RepairStats struct {
	OriginalBytes    int           `json:"original_bytes"`
	RepairedBytes    int           `json:"repaired_bytes"`
	ErrorsFixed      int           `json:"errors_fixed"`
	RepairTime       time.Duration `json:"repair_time"`
	RepairStrategies []string      `json:"repair_strategies"`
	WasRepaired      bool          `json:"was_repaired"`
}

// RepairJSON attempts to repair malformed JSON using multiple strategies in order:
// 1. Remove trailing commas
// 2. Complete incomplete objects/arrays
// 3. Remove JavaScript-style comments
// 4. Add missing quotes around keys
// 5. Convert single quotes to double quotes
// 6. Use the jsonrepair library as sophisticated fallback
func RepairJSON(raw string) (repaired string, stats RepairStats, err error) {
	startTime := time.Now()
	stats.OriginalBytes = len(raw)

	// First, try to parse as-is
	var testObj interface{}
	if json.Unmarshal([]byte(raw), &testObj) == nil {
		stats.RepairedBytes = len(raw)
		stats.RepairTime = time.Since(startTime)
		stats.WasRepaired = false
		return raw, stats, nil
	}

	stats.WasRepaired = true
	repaired = raw

	apply := func(name string, changed func(string) string) {
		original := repaired
		repaired = changed(repaired)
		if repaired != original {
			stats.RepairStrategies = append(stats.RepairStrategies, name)
			stats.ErrorsFixed++
		}
	}

	if strings.Contains(repaired, ",}") || strings.Contains(repaired, ",]") {
		apply("trailing_commas", removeTrailingCommas)
	}
	if needsCompletion(repaired) {
		apply("completion", completeJSON)
	}
	if strings.Contains(repaired, "//") || strings.Contains(repaired, "/*") {
		apply("comments_removed", removeComments)
	}
	if unquotedKeyRe.MatchString(repaired) {
		apply("key_quotes", addKeyQuotes)
	}
	if singleQuoteRe.MatchString(repaired) {
		apply("single_quotes", fixSingleQuotes)
	}

	// Library fallback for anything the simple strategies missed
	if json.Unmarshal([]byte(repaired), &testObj) != nil {
		if libraryRepaired, libraryErr := jsonrepair.JSONRepair(repaired); libraryErr == nil && libraryRepaired != repaired {
			repaired = libraryRepaired
			stats.RepairStrategies = append(stats.RepairStrategies, "jsonrepair_library")
			stats.ErrorsFixed++
		}
	}

	stats.RepairedBytes = len(repaired)
	stats.RepairTime = time.Since(startTime)

	if json.Unmarshal([]byte(repaired), &testObj) != nil {
		return repaired, stats, fmt.Errorf("JSON repair failed after %d strategies", len(stats.RepairStrategies))
	}

	return repaired, stats, nil
}

var (
	trailingCommaBraceRe   = regexp.MustCompile(`,\s*}`)
	trailingCommaBracketRe = regexp.MustCompile(`,\s*]`)
	unquotedKeyRe          = regexp.MustCompile(`[{,]\s*[a-zA-Z_][a-zA-Z0-9_]*\s*:`)
	singleQuoteRe          = regexp.MustCompile(`'[^']*'`)
	blockCommentRe         = regexp.MustCompile(`/\*.*?\*/`)
)

func removeTrailingCommas(s string) string {
	s = trailingCommaBraceRe.ReplaceAllString(s, "}")
	return trailingCommaBracketRe.ReplaceAllString(s, "]")
}

func needsCompletion(s string) bool {
	s = strings.TrimSpace(s)
	openBraces := strings.Count(s, "{") - strings.Count(s, "}")
	openBrackets := strings.Count(s, "[") - strings.Count(s, "]")
	return openBraces > 0 || openBrackets > 0
}

// completeJSON adds missing closing braces/brackets in last-opened-first-closed order
func completeJSON(s string) string {
	s = strings.TrimSpace(s)

	var stack []rune
	for _, char := range s {
		switch char {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '}' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == ']' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

func removeComments(s string) string {
	lines := strings.Split(s, "\n")
	var cleanLines []string
	for _, line := range lines {
		if idx := strings.Index(line, "//"); idx != -1 {
			line = line[:idx]
		}
		cleanLines = append(cleanLines, line)
	}
	return blockCommentRe.ReplaceAllString(strings.Join(cleanLines, "\n"), "")
}

func addKeyQuotes(s string) string {
	re := regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
	return re.ReplaceAllString(s, `$1"$2"$3`)
}

func fixSingleQuotes(s string) string {
	return singleQuoteRe.ReplaceAllStringFunc(s, func(m string) string {
		return `"` + m[1:len(m)-1] + `"`
	})
}
