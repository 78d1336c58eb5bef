package auth

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService handles JWT token creation and validation
type TokenService struct {
	db        *sql.DB
	secretKey []byte

	// Configurable token duration
	AccessTokenDuration time.Duration // Default: 12 hours
}

// Operator is an authenticated platform user
type Operator struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// JWTClaims represents the claims in our JWT tokens
type JWTClaims struct {
	OperatorID int64  `json:"operator_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(db *sql.DB, secretKey string) *TokenService {
	return &TokenService{
		db:                  db,
		secretKey:           []byte(secretKey),
		AccessTokenDuration: 12 * time.Hour,
	}
}

// CreateAccessToken creates a signed JWT for an operator
func (ts *TokenService) CreateAccessToken(op *Operator) (string, time.Time, error) {
	expiresAt := time.Now().Add(ts.AccessTokenDuration)

	claims := &JWTClaims{
		OperatorID: op.ID,
		Email:      op.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "waveline",
			Subject:   fmt.Sprintf("operator_%d", op.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtString, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return jwtString, expiresAt, nil
}

// ValidateAccessToken validates a JWT access token and returns the operator
func (ts *TokenService) ValidateAccessToken(tokenString string) (*Operator, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	op := &Operator{}
	err = ts.db.QueryRow(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM operators WHERE id = $1
	`, claims.OperatorID).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	return op, nil
}

// FindOperatorByEmail looks an operator up for login
func (ts *TokenService) FindOperatorByEmail(email string) (*Operator, error) {
	op := &Operator{}
	err := ts.db.QueryRow(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM operators WHERE email = $1
	`, email).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}
	return op, nil
}
