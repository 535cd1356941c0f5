package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/styledecor/internal/config"
	"github.com/iliyamo/styledecor/internal/service"
	"github.com/iliyamo/styledecor/internal/utils"
)

// AuthHandler serves the identity endpoints.  Credentials are issued by the
// external identity provider; this service only records who signed in.
type AuthHandler struct {
	Cfg   config.Config
	Users *service.UserEngine
}

func NewAuthHandler(cfg config.Config, u *service.UserEngine) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

type signInReq struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// SignIn handles POST /v1/users/sign-in.  The user record is keyed on the
// verified principal, never on a body field.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.SignIn(ctx, principal(c), req.Name, req.PhotoURL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Me handles GET /v1/users/me.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Get(ctx, principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Role handles GET /v1/users/:email/role for the caller's own email.
func (h *AuthHandler) Role(c echo.Context) error {
	email, ok := requireSelf(c, c.Param("email"))
	if !ok {
		return forbidden(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Users.Role(ctx, email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role": role})
}

type devTokenReq struct {
	Email string `json:"email"`
}

// DevToken handles POST /v1/auth/dev-token.  It mints an access token for
// any email and is only registered outside production.
func (h *AuthHandler) DevToken(c echo.Context) error {
	var req devTokenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return badRequest(c, "a valid email is required")
	}
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, email, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": tok.Token, "expires": tok.Exp.Format(time.RFC3339)})
}

// ListUsers handles GET /v1/admin/users.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

type setRoleReq struct {
	Role string `json:"role"`
}

// SetRole handles PATCH /v1/admin/users/:email/role.
func (h *AuthHandler) SetRole(c echo.Context) error {
	var req setRoleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.SetRole(ctx, strings.ToLower(c.Param("email")), strings.TrimSpace(req.Role))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
