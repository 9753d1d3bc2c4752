package dto

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequest wallet-signature login request
type AuthRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"` // 65-byte hex personal_sign signature
}

// AuthResponse login response
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// JWTClaims JWT claims structure
type JWTClaims struct {
	Address string `json:"address"` // wallet address, the caller identity for every operation
	jwt.RegisteredClaims
}
