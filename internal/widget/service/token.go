package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/referral/internal/widget/domain"
)

// peekProductID reads the product id from an unverified token. The value is
// only used to pick the verification secret.
func peekProductID(token string) (string, error) {
	claims := &domain.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	productID := strings.TrimSpace(claims.ProductID)
	if productID == "" {
		return "", fmt.Errorf("%w: productId claim missing", domain.ErrInvalidToken)
	}
	return productID, nil
}

func verifyToken(token, secret string, now func() time.Time) (*domain.Claims, error) {
	claims := &domain.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	claims.Subject = strings.TrimSpace(claims.Subject)
	if claims.Subject == "" {
		return nil, domain.ErrMissingSubject
	}
	return claims, nil
}
