package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// DecodeResult contains the outcome of decoding an LLM response
type DecodeResult struct {
	RepairStats  RepairStats `json:"repair_stats"`
	OriginalJSON string      `json:"-"`
	RepairedJSON string      `json:"-"`
	Success      bool        `json:"success"`
}

// DecodeResponse extracts the JSON payload from a raw LLM response, repairs
// it if needed, and unmarshals it into target.
func DecodeResponse(raw string, target interface{}) (DecodeResult, error) {
	result := DecodeResult{OriginalJSON: raw}

	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	repairedJSON, repairStats, err := RepairJSON(jsonStr)
	result.RepairStats = repairStats
	result.RepairedJSON = repairedJSON

	if repairStats.WasRepaired {
		log.Debug().
			Strs("strategies", repairStats.RepairStrategies).
			Int("errors_fixed", repairStats.ErrorsFixed).
			Dur("repair_time", repairStats.RepairTime).
			Msg("JSON repair applied to LLM response")
	}

	if err != nil {
		return result, fmt.Errorf("JSON repair failed: %w", err)
	}

	if err := json.Unmarshal([]byte(repairedJSON), target); err != nil {
		return result, fmt.Errorf("JSON parsing failed after repair: %w", err)
	}

	result.Success = true
	return result, nil
}

// ExtractJSON extracts JSON content from mixed text/JSON responses
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// If it starts with { or [, assume it's pure JSON
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	// Look for JSON blocks marked with ```json or ```
	if strings.Contains(raw, "```") {
		lines := strings.Split(raw, "\n")
		var jsonLines []string
		inCodeBlock := false

		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}

		if len(jsonLines) > 0 {
			return strings.Join(jsonLines, "\n")
		}
	}

	// Look for the first { or [ and find its matching close
	startIdx := strings.Index(raw, "{")
	if startIdx == -1 {
		startIdx = strings.Index(raw, "[")
		if startIdx == -1 {
			return ""
		}
	}

	openChar := raw[startIdx]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	count := 0
	for i := startIdx; i < len(raw); i++ {
		if raw[i] == openChar {
			count++
		} else if raw[i] == closeChar {
			count--
			if count == 0 {
				return raw[startIdx : i+1]
			}
		}
	}

	// Incomplete structure; the repair pass will try to close it
	return raw[startIdx:]
}
