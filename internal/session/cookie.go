package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/security"
)

// CookieMaxAge is the session cookie lifetime in seconds.
const CookieMaxAge = int(security.SessionTTL / time.Second)

// CookieHelper writes and clears the session cookie.
type CookieHelper struct {
	secure bool
}

// NewCookieHelper constructs a CookieHelper. secure controls the Secure attribute.
func NewCookieHelper(secure bool) *CookieHelper {
	return &CookieHelper{secure: secure}
}

// Set stores token in the session cookie.
func (h *CookieHelper) Set(c *gin.Context, token string) {
	h.write(c, token, CookieMaxAge)
}

// Clear expires the session cookie.
func (h *CookieHelper) Clear(c *gin.Context) {
	h.write(c, "", -1)
}

func (h *CookieHelper) write(c *gin.Context, value string, maxAge int) {
	secure := false
	if h != nil {
		secure = h.secure
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", secure, true)
}
