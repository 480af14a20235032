package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiresWithin reports whether the access token's exp claim falls inside
// the window. The token is parsed without signature verification: the
// portal holds no signing key; this is purely an expiry hint, and the exam
// API remains the authority on token validity. Unparseable tokens report
// false so the 401-retry path handles them.
func expiresWithin(token string, window time.Duration) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) <= window
}
