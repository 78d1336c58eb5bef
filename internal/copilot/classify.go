package copilot

import "strings"

// Deterministic classification of operator messages. Listing and navigation
// intents are resolved without a model call; everything else falls through to
// the assistant.

// listingVerbs are words that signal the operator wants an enumeration
var listingVerbs = []string{
	"list", "lista", "listar", "show", "muestra", "muéstrame", "ver",
	"cuales", "cuáles", "which", "what", "que tengo", "qué tengo",
	"cuantas", "cuántas", "cuantos", "cuántos", "how many",
}

var automationWords = []string{"automation", "automatización", "automatizacion", "automatizaciones", "reglas"}
var programWords = []string{"program", "programa", "programas", "agente", "agentes", "asistentes"}

// navigationPrefixes signal the operator wants to jump to a view, not change
// anything
var navigationPrefixes = []string{
	"open ", "go to ", "take me to ", "abre ", "abrir ", "ir a ", "llevame a ", "llévame a ",
}

// DetectListingIntent reports whether the message deterministically asks to
// enumerate automations or programs
func DetectListingIntent(message string) (FollowUpKind, bool) {
	m := strings.ToLower(strings.TrimSpace(message))
	if !containsAny(m, listingVerbs) {
		return "", false
	}
	if containsAny(m, automationWords) {
		return FollowUpListAutomations, true
	}
	if containsAny(m, programWords) {
		return FollowUpListPrograms, true
	}
	return "", false
}

// DetectNavigationIntent maps "open X" style messages to a navigation action
func DetectNavigationIntent(message string) (*Action, bool) {
	m := strings.ToLower(strings.TrimSpace(message))
	if !hasAnyPrefix(m, navigationPrefixes) {
		return nil, false
	}
	switch {
	case containsAny(m, programWords):
		return &Action{Type: ActionOpenPrograms, Label: "Programs", URL: "/programs"}, true
	case containsAny(m, automationWords):
		return &Action{Type: ActionOpenAutomations, Label: "Automations", URL: "/automations"}, true
	case containsAny(m, []string{"phone", "linea", "línea", "lineas", "líneas", "numero", "número"}):
		return &Action{Type: ActionOpenPhoneLines, Label: "Phone lines", URL: "/phone-lines"}, true
	case containsAny(m, []string{"user", "usuario", "usuarios", "equipo", "team", "member"}):
		return &Action{Type: ActionOpenUsers, Label: "Users", URL: "/users"}, true
	}
	return nil, false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
