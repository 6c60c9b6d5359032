package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// orgCtxKey is the gin context key holding the authenticated organization.
const orgCtxKey = "organize_id"

// BearerAuth maps the request's Bearer token to an organization. Tokens
// maps token to organization id.
func BearerAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		org, ok := tokens[strings.TrimSpace(token)]
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		c.Set(orgCtxKey, org)
		c.Next()
	}
}

// OrganizationID returns the authenticated organization of the request.
func OrganizationID(c *gin.Context) string {
	v, _ := c.Get(orgCtxKey)
	s, _ := v.(string)
	return s
}

// abortError writes the error envelope the SDK's transport decodes.
func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}
