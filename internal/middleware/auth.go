package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

var redisClient *redis.Client

// InitAuthMiddleware wires the redis client used for the token
// blacklist. When redis is unavailable the blacklist check is skipped.
func InitAuthMiddleware(client *redis.Client) {
	redisClient = client
}

type tokenClaims struct {
	UserID    string
	OwnerID   string
	OwnerKind string
	Role      string
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Extract token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token := parts[1]

		if redisClient != nil {
			blacklisted, err := redisClient.Exists(r.Context(), fmt.Sprintf("blacklist:%s", token)).Result()
			if err == nil && blacklisted > 0 {
				http.Error(w, "Token revoked", http.StatusUnauthorized)
				return
			}
		}

		claims, err := validateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", claims.UserID)
		ctx = context.WithValue(ctx, "ownerID", claims.OwnerID)
		ctx = context.WithValue(ctx, "ownerKind", claims.OwnerKind)
		ctx = context.WithValue(ctx, "role", claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly rejects callers whose token does not carry the admin role.
// It must run after AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value("role").(string)
		if role != "admin" {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateToken(tokenString string) (*tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &tokenClaims{
		UserID:    fmt.Sprintf("%v", claims["user_id"]),
		OwnerID:   fmt.Sprintf("%v", claims["owner_id"]),
		OwnerKind: fmt.Sprintf("%v", claims["owner_kind"]),
		Role:      fmt.Sprintf("%v", claims["role"]),
	}, nil
}
