package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
)

const (
	CtxIdentityKey = "auth_identity"
	SessionCookie  = "bookhub_session"
)

// TokenAuth authenticates "Authorization: Token <key>" and "Bearer <key>"
// headers. With required set, requests without a header are rejected;
// otherwise they continue as anonymous. A bad token is always rejected.
func TokenAuth(a *Authenticator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := tokenFromHeader(c.GetHeader("Authorization"))
		if !ok {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": MsgNoCredentials})
				return
			}
			c.Set(CtxIdentityKey, policy.Anonymous())
			c.Next()
			return
		}

		id, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				log.Printf("[auth] authenticate: %v", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"detail": apperr.Message(err, "authentication failed")})
			return
		}

		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

func tokenFromHeader(h string) (string, bool) {
	h = strings.TrimSpace(h)
	for _, scheme := range []string{"token ", "bearer "} {
		if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
			raw := strings.TrimSpace(h[len(scheme):])
			return raw, raw != ""
		}
	}
	return "", false
}

// SessionAuth reads the session cookie. Missing or stale sessions continue
// as anonymous and a stale cookie is cleared.
func SessionAuth(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := policy.Anonymous()
		if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
			got, err := a.Authenticate(c.Request.Context(), raw)
			if err != nil {
				ClearSession(c)
			} else {
				id = got
			}
		}
		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

func SetSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", false, true)
}

func ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// IdentityFrom returns the identity set by TokenAuth or SessionAuth, or
// anonymous.
func IdentityFrom(c *gin.Context) policy.Identity {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return policy.Anonymous()
	}
	id, _ := v.(policy.Identity)
	return id
}
