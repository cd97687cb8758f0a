package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CookieName is the cookie the session token travels in
	CookieName = "access_token"

	contextAccountID = "accountID"
)

// SetCookie stores token in the session cookie
func (a *Authenticator) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(a.validity.Seconds()), "/", "", false, true)
}

// ClearCookie expires the session cookie
func ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
}

// Middleware rejects requests without a valid token. The token is read from the session
// cookie or from a Bearer Authorization header.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Acesso não autorizado"})
			return
		}

		claims, err := a.ValidateToken(token)
		if err != nil {
			ClearCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token inválido ou expirado"})
			return
		}

		c.Set(contextAccountID, claims.AccountID())
		c.Next()
	}
}

// AccountID returns the authenticated account of the request, or "" outside the middleware
func AccountID(c *gin.Context) string {
	return c.GetString(contextAccountID)
}

// WithAccountID marks the request as authenticated for id
func WithAccountID(c *gin.Context, id string) {
	c.Set(contextAccountID, id)
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
