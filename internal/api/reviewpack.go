package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/waveline/internal/api/auth"
	"github.com/waveline/internal/workspace"
)

// ReviewPack is a point-in-time export of a workspace's configuration, meant
// for offline review before going live
type ReviewPack struct {
	GeneratedAt time.Time                   `json:"generatedAt"`
	Workspace   *workspace.Workspace        `json:"workspace"`
	Programs    []*workspace.Program        `json:"programs"`
	PhoneLines  []*workspace.PhoneLine      `json:"phoneLines"`
	Automations []*workspace.AutomationRule `json:"automations"`
	Stages      []*workspace.Stage          `json:"stages"`
}

type reviewPackHandler struct {
	store *workspace.Store
}

// get serves the export referenced by DOWNLOAD_REVIEW_PACK results
func (h *reviewPackHandler) get(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	workspaceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || workspaceID != op.WorkspaceID {
		return echo.NewHTTPError(http.StatusForbidden, "Workspace mismatch")
	}

	ctx := c.Request().Context()
	pack := ReviewPack{GeneratedAt: time.Now()}

	if pack.Workspace, err = h.store.GetWorkspace(ctx, workspaceID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Workspace not found")
	}
	if pack.Programs, err = h.store.ListPrograms(ctx, workspaceID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to collect programs")
	}
	if pack.PhoneLines, err = h.store.ListPhoneLines(ctx, workspaceID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to collect phone lines")
	}
	if pack.Automations, err = h.store.ListAutomationRules(ctx, workspaceID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to collect automations")
	}
	if pack.Stages, err = h.store.ListStages(ctx, workspaceID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to collect stages")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="review-pack-%d.json"`, workspaceID))
	return c.JSONPretty(http.StatusOK, pack, "  ")
}
