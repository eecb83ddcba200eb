package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/chat-storefront/internal/auth"
)

const claimsKey = "auth.claims"

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// Auth rejects requests without a valid token and stores the claims on the
// echo context.
func Auth(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := ExtractToken(c.Request())
			if tokenString == "" {
				return respondError(c, http.StatusUnauthorized, "unauthorized")
			}

			claims, err := jwtService.Validate(tokenString)
			if err != nil {
				return respondError(c, http.StatusUnauthorized, "invalid token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// OptionalAuth stores claims when a valid token is present and otherwise
// lets the request through untouched.
func OptionalAuth(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenString := ExtractToken(c.Request()); tokenString != "" {
				if claims, err := jwtService.Validate(tokenString); err == nil {
					c.Set(claimsKey, claims)
				}
			}
			return next(c)
		}
	}
}

// RequireRole must run after Auth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				return respondError(c, http.StatusUnauthorized, "unauthorized")
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(c)
				}
			}
			return respondError(c, http.StatusForbidden, "forbidden")
		}
	}
}

// Claims returns the token claims stored by Auth or OptionalAuth.
func Claims(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	return claims, ok
}
