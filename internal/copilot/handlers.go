package copilot

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/waveline/internal/api/auth"
)

// Handler exposes the copilot service over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates the copilot HTTP handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the copilot endpoints on an authenticated group.
// Extra middleware (rate limiting) applies to the chat endpoint only.
func (h *Handler) RegisterRoutes(g *echo.Group, chatMiddleware ...echo.MiddlewareFunc) {
	g.POST("/copilot/chat", h.chat, chatMiddleware...)
	g.GET("/copilot/runs/:id", h.getRun)
	g.POST("/copilot/runs/:id/confirm", h.confirmRun)
	g.POST("/copilot/runs/:id/cancel", h.cancelRun)
	g.GET("/copilot/threads", h.listThreads)
	g.GET("/copilot/threads/:id", h.getThread)
	g.PATCH("/copilot/threads/:id", h.patchThread)
}

// httpError translates the copilot error taxonomy into HTTP status codes.
// Unclassified errors surface as 500 with a generic message.
func httpError(err error) error {
	kind, ok := KindOf(err)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, MessageOf(err))
	}
	status := http.StatusInternalServerError
	switch kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindConflict, KindConcurrency:
		status = http.StatusConflict
	case KindAuthorization:
		status = http.StatusForbidden
	case KindProvider:
		status = http.StatusBadGateway
	}
	return echo.NewHTTPError(status, MessageOf(err))
}

type chatRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

func (h *Handler) chat(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.service.Chat(c.Request().Context(), op, req.ThreadID, req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) getRun(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	run, err := h.service.GetRun(c.Request().Context(), op, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, run)
}

type confirmRequest struct {
	ProposalID string `json:"proposalId"`
}

func (h *Handler) confirmRun(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	run, err := h.service.Confirm(c.Request().Context(), op, c.Param("id"), req.ProposalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func (h *Handler) cancelRun(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	run, err := h.service.Cancel(c.Request().Context(), op, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func (h *Handler) listThreads(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	threads, err := h.service.ListThreads(c.Request().Context(), op)
	if err != nil {
		return httpError(err)
	}
	if threads == nil {
		threads = []*Thread{}
	}
	return c.JSON(http.StatusOK, threads)
}

func (h *Handler) getThread(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	history, err := h.service.GetThreadHistory(c.Request().Context(), op, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, history)
}

type patchThreadRequest struct {
	Archived *bool `json:"archived"`
}

func (h *Handler) patchThread(c echo.Context) error {
	op, err := auth.FromEchoContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var req patchThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Archived == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "archived field required")
	}

	thread, err := h.service.SetThreadArchived(c.Request().Context(), op, c.Param("id"), *req.Archived)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, thread)
}
