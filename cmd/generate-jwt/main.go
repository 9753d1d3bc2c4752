// Generates a test bearer token for exercising the authenticated API
// without a wallet. The secret comes from JWT_SECRET or falls back to the
// development default.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"league-backend/internal/dto"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	address := flag.String("address", "0x742d35cc6634c0532925a3b0f26750c66d78eb66", "wallet address the token represents")
	hours := flag.Int("hours", 24, "token lifetime in hours")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "league-backend-dev-secret"
	}

	now := time.Now()
	claims := dto.JWTClaims{
		Address: strings.ToLower(*address),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(*hours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "league-backend",
			Subject:   strings.ToLower(*address),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  Address: %s\n", claims.Address)
	fmt.Printf("  Expires: %s\n", claims.ExpiresAt.Time)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/leagues\n", tokenString)
}
