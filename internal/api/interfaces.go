package api

import (
	"github.com/golang-jwt/jwt/v5"
)

type JWTServiceI interface {
	GenerateToken(identity string) (string, error)
	ParseToken(tokenString string) (*JWTClaims, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
	// Account identity the caller acts as
	Identity string `json:"identity"`
}
