package copilot

import "fmt"

// Action is a navigation hint derived from committed command results. The
// frontend renders these as links; nothing here has side effects.
type Action struct {
	Type     string `json:"type"`
	Label    string `json:"label"`
	URL      string `json:"url"`
	EntityID int64  `json:"entityId,omitempty"`
}

// Action types
const (
	ActionOpenPrograms    = "OPEN_PROGRAMS"
	ActionOpenPhoneLines  = "OPEN_PHONE_LINES"
	ActionOpenAutomations = "OPEN_AUTOMATIONS"
	ActionOpenUsers       = "OPEN_USERS"
	ActionDownload        = "DOWNLOAD"
)

// SynthesizeActions derives navigation hints from executed command results.
// Only successful results contribute; each view is linked at most once, the
// first relevant result winning the entity focus.
func SynthesizeActions(results []CommandResult) []Action {
	var actions []Action
	seen := map[string]bool{}

	add := func(a Action) {
		if seen[a.Type] {
			return
		}
		seen[a.Type] = true
		actions = append(actions, a)
	}

	for _, r := range results {
		if !r.OK {
			continue
		}
		switch r.Type {
		case CmdCreateProgram:
			add(Action{Type: ActionOpenPrograms, Label: "View program",
				URL: fmt.Sprintf("/programs/%d", r.EntityID), EntityID: r.EntityID})
		case CmdCreatePhoneLine, CmdSetPhoneLineDefaultProgram:
			add(Action{Type: ActionOpenPhoneLines, Label: "View phone lines",
				URL: "/phone-lines", EntityID: r.EntityID})
		case CmdCreateAutomation:
			add(Action{Type: ActionOpenAutomations, Label: "View automations",
				URL: "/automations", EntityID: r.EntityID})
		case CmdUpsertMembership, CmdInviteUser:
			add(Action{Type: ActionOpenUsers, Label: "View users", URL: "/users"})
		case CmdDownloadReviewPack:
			if r.URL != "" {
				add(Action{Type: ActionDownload, Label: "Download review pack", URL: r.URL})
			}
		case CmdWorkspaceBootstrap:
			add(Action{Type: ActionOpenAutomations, Label: "Review seeded setup",
				URL: "/automations"})
		}
	}
	return actions
}
