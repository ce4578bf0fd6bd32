package jwttoken

import (
	authmw "kycdesk/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes the JWT service through the auth middleware's validator port.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
	}, nil
}
