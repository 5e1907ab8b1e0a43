package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docharvest/pkg/auth"
)

// AuthMiddleware guards endpoints with a bearer token checked against the
// configured validator. A nil validator disables auth (dev mode).
func AuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}
		claims, err := validateBearer(validator, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("userClaims", claims)
		subject := strings.TrimSpace(claims.Email)
		if subject == "" {
			subject = strings.TrimSpace(claims.Subject)
		}
		c.Set("userSubject", subject)
		c.Next()
	}
}

func validateBearer(validator auth.Validator, authHeader string) (*auth.Claims, error) {
	token := BearerToken(authHeader)
	if token == "" {
		return nil, errMissingBearer
	}
	return validator.Validate(token)
}

// BearerToken extracts the token from an Authorization header, or "".
func BearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type authError string

func (e authError) Error() string { return string(e) }

const errMissingBearer = authError("missing or malformed Authorization header")
