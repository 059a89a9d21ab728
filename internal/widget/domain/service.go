package domain

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are issued by the product backend and signed with its widget secret.
type Claims struct {
	ProductID string `json:"productId"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type InitRequest struct {
	ProductID    string `json:"productId"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type Service interface {
	// Init returns the program widget config merged with the participant's
	// referralLink.
	Init(ctx context.Context, token string, req InitRequest) (map[string]any, error)
}

var (
	ErrMissingToken     = errors.New("missing_token")
	ErrInvalidToken     = errors.New("invalid_token")
	ErrProductMismatch  = errors.New("product_mismatch")
	ErrMissingSubject   = errors.New("missing_subject")
	ErrInvalidProductID = errors.New("invalid_product_id")
)

// IsAuthError reports whether err should be answered with 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrProductMismatch) ||
		errors.Is(err, ErrMissingSubject)
}
