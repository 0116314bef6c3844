package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"pockettherapist.dev/agent/internal/config"
)

// Admin tokens gate the cross-user message feed. HS256 over the
// configured secret, 24h lifetime.

func GenerateAdminToken(subject string) (string, error) {
	if config.AppConfig.AdminJWTSecret == "" {
		return "", fmt.Errorf("ADMIN_JWT_SECRET is not configured")
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.AdminJWTSecret))
}

func ValidateAdminToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.AdminJWTSecret), nil
	})

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, _ := claims["sub"].(string)
		return sub, nil
	}

	return "", fmt.Errorf("invalid token")
}
