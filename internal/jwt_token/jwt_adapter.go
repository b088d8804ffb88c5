package jwttoken

import (
	"certledger/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims narrows token claims to what the auth middleware needs.
func ToMiddlewareClaims(claims *IssuerClaims) *auth.JWTClaims {
	return &auth.JWTClaims{
		Subject: claims.Subject,
		Name:    claims.Name,
		JTI:     claims.ID,
	}
}

// JWTServiceAdapter satisfies auth.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
