package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest is the payload for the login endpoint
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RegisterHandlers registers the auth endpoints
func RegisterHandlers(g *echo.Group, tokenService *TokenService) {
	g.POST("/auth/login", loginHandler(tokenService))
}

func loginHandler(tokenService *TokenService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req LoginRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
		}

		op, err := tokenService.FindOperatorByEmail(req.Email)
		if err != nil {
			// Same response as a wrong password so accounts can't be enumerated
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}

		token, expiresAt, err := tokenService.CreateAccessToken(op)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create access token")
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create token")
		}

		log.Info().Str("email", op.Email).Msg("Operator logged in")

		return c.JSON(http.StatusOK, LoginResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresAt:   expiresAt,
		})
	}
}
