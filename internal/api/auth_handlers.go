package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/auth"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /auth/login for the vendor admin. The token is
// returned in the body and as an HttpOnly cookie.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errBadBody)
	}

	if err := h.admin.Authenticate(req.Email, req.Password); err != nil {
		h.logger.Warn("admin login rejected", zap.String("ip", c.RealIP()))
		return respondError(c, err)
	}

	token, expiresAt, err := h.jwt.Issue(h.admin.Email, auth.RoleAdmin)
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}
