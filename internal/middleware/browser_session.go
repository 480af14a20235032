package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookie is the browser session id cookie name.
	SessionCookie = "portal_sid"
	// ContextKeySessionID is the Gin context key for the browser session id.
	ContextKeySessionID = "session_id"

	sessionCookieMaxAge = 7 * 24 * 60 * 60
)

// BrowserSession assigns every browser a stable session id cookie. The id
// keys the credential store and the active exam session; it carries no
// claims of its own.
func BrowserSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || sid == "" {
			sid = uuid.New().String()
			c.SetCookie(SessionCookie, sid, sessionCookieMaxAge, "/", "", false, true)
		}
		c.Set(ContextKeySessionID, sid)
		c.Next()
	}
}

// GetSessionID returns the browser session id set by BrowserSession.
func GetSessionID(c *gin.Context) string {
	sid, _ := c.Get(ContextKeySessionID)
	id, _ := sid.(string)
	return id
}
