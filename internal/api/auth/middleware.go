package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/waveline/internal/workspace"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// Context keys
	OperatorKey        ContextKey = "operator"
	OperatorContextKey ContextKey = "operator_context"
)

// RequireAuth validates the Bearer token and stores the operator on the
// request context
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			op, err := tokenService.ValidateAccessToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(OperatorKey), op)
			return next(c)
		}
	}
}

// ResolveWorkspace is the workspace access resolver: given an authenticated
// request, it determines the caller's workspace and role from the membership
// table and stores an OperatorContext on the request. The workspace is taken
// from the X-Workspace-ID header.
func ResolveWorkspace(store *workspace.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			op, ok := c.Get(string(OperatorKey)).(*Operator)
			if !ok || op == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Operator not resolved")
			}

			wsHeader := c.Request().Header.Get("X-Workspace-ID")
			if wsHeader == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "X-Workspace-ID header required")
			}
			workspaceID, err := strconv.ParseInt(wsHeader, 10, 64)
			if err != nil || workspaceID <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid X-Workspace-ID header")
			}

			role, err := store.GetMembershipRole(c.Request().Context(), workspaceID, op.Email)
			if err != nil {
				if errors.Is(err, workspace.ErrNotFound) {
					return echo.NewHTTPError(http.StatusForbidden, "No membership in workspace")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve workspace access")
			}

			oc := &OperatorContext{
				OperatorID:  op.ID,
				Email:       op.Email,
				WorkspaceID: workspaceID,
				Role:        Role(role),
			}
			c.Set(string(OperatorContextKey), oc)
			return next(c)
		}
	}
}

// FromEchoContext extracts the resolved OperatorContext from a request
func FromEchoContext(c echo.Context) (*OperatorContext, error) {
	oc, ok := c.Get(string(OperatorContextKey)).(*OperatorContext)
	if !ok || oc == nil {
		return nil, errors.New("operator context not resolved")
	}
	return oc, nil
}
