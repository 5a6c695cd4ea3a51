package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-farmmarket/models"
	"go-farmmarket/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware verifies JWT tokens and attaches user information to the context
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Authorization header missing", nil)
			return
		}

		tokenStr, ok := BearerToken(r)
		if !ok {
			utils.WriteError(w, http.StatusUnauthorized, "Invalid Authorization header format", nil)
			return
		}

		claims, err := utils.ParseJWT(tokenStr)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		// Attach user information to the request context
		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through only when the caller holds one of roles
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r)
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			for _, role := range roles {
				if models.Role(claims.Role) == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, http.StatusForbidden, "Forbidden: insufficient role", nil)
		})
	}
}

// ClaimsFrom returns the claims AuthMiddleware attached to the request
func ClaimsFrom(r *http.Request) (*utils.Claims, bool) {
	claims, ok := r.Context().Value(UserContextKey).(*utils.Claims)
	return claims, ok
}

// Caller is the authenticated user of a request
type Caller struct {
	ID   primitive.ObjectID
	Role models.Role
}

// IsAdmin reports whether the caller has the admin role
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// CallerFrom decodes the user id and role of the request's claims
func CallerFrom(r *http.Request) (Caller, bool) {
	claims, ok := ClaimsFrom(r)
	if !ok {
		return Caller{}, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Caller{}, false
	}
	return Caller{ID: id, Role: models.Role(claims.Role)}, true
}
