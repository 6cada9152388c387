package auth

import (
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/middleware"
	"github.com/simp-lee/lendpanel/internal/pkg"
)

// CookieConfig describes the cookie that carries the bearer token.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles sign-in and sign-out for both pages and the JSON API.
type AuthHandler struct {
	svc    Service
	cookie CookieConfig
	now    func() time.Time
}

// NewHandler creates a new AuthHandler with the given service.
func NewHandler(svc Service, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandler{svc: svc, cookie: cookie, now: time.Now}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	h.setCookie(c, session)
	pkg.Success(c, TokenResponse{Token: session.Token, ExpiresAt: session.ExpiresAt.Unix()})
}

// LoginPage renders the sign-in form.
// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	next := safeNext(c.Query("next"))
	if token, _ := c.Cookie(h.cookie.Name); token != "" && !pkg.TokenExpired(token, h.now()) {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	h.renderLogin(c, http.StatusOK, "", "", next)
}

// LoginSubmit handles the sign-in form.
// POST /login
func (h *AuthHandler) LoginSubmit(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.loginFailed(c, http.StatusBadRequest, "Enter a valid email address and password.", req)
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.loginFailed(c, domain.HTTPStatusCode(err), pkg.SafeMessage(err, "Sign-in failed. Try again later."), req)
		return
	}

	h.setCookie(c, session)
	next := safeNext(req.Next)
	if pkg.IsHTMX(c) {
		pkg.Redirect(c, next)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, next)
}

// Logout clears the session cookie.
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	if pkg.IsHTMX(c) {
		pkg.Redirect(c, "/login")
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) loginFailed(c *gin.Context, status int, msg string, req LoginRequest) {
	if pkg.IsHTMX(c) {
		pkg.Toast(c, msg, pkg.ToastError)
		pkg.KeepContent(c)
		c.Status(http.StatusOK)
		return
	}
	h.renderLogin(c, status, msg, strings.TrimSpace(req.Email), safeNext(req.Next))
}

func (h *AuthHandler) renderLogin(c *gin.Context, status int, errMsg, email, next string) {
	c.HTML(status, "auth/login.html", gin.H{
		"Title":     "Sign in",
		"Error":     errMsg,
		"Email":     email,
		"Next":      next,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// setCookie stores the token in an HttpOnly cookie that lives as long as
// the session.
func (h *AuthHandler) setCookie(c *gin.Context, s *Session) {
	maxAge := int(math.Ceil(s.ExpiresAt.Sub(h.now()).Seconds()))
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, s.Token, maxAge, "/", "", h.cookie.Secure, true)
}

// safeNext returns next when it is a same-site absolute path, "/" otherwise.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if strings.HasPrefix(u.Path, "/login") {
		return "/"
	}
	return next
}
