// Package institutionauth is a reserved hook point for institution-scoped
// authentication on the database-hydrated solve endpoints. It is not
// installed on any route yet: spec.md does not ask for an auth subsystem,
// and /solve-from-db currently trusts its caller the way the replaced
// CP-SAT service does. See DESIGN.md for why this stays unwired.
package institutionauth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/sis-scheduler/scheduler-core/pkg/errors"
	"github.com/sis-scheduler/scheduler-core/pkg/response"
)

// ContextInstitutionKey is the gin context key a verified token's
// institution_id claim would be stored under.
const ContextInstitutionKey = "institution_id"

// Claims is the expected shape of a scheduler-core access token.
type Claims struct {
	InstitutionID string `json:"institution_id"`
	jwt.RegisteredClaims
}

// RequireInstitution returns middleware that would verify a bearer token
// and scope the request to the institution named in its claims. It is
// exported for future wiring but registered on no route today.
func RequireInstitution(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.New("UNAUTHORIZED", 401, "missing or malformed authorization header"))
			c.Abort()
			return
		}

		var claims Claims
		_, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || claims.InstitutionID == "" {
			response.Error(c, appErrors.New("UNAUTHORIZED", 401, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextInstitutionKey, claims.InstitutionID)
		c.Next()
	}
}
