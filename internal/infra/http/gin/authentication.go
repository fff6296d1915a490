package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"

	"resort/internal/app/policies"
	domainuser "resort/internal/domain/user"
)

const (
	principalContextKey = "resort.principal"

	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
)

// PrincipalMiddleware trusts the identity headers set by the upstream auth
// gateway. Requests without X-User-ID stay anonymous; the command pipeline
// rejects them where an identity is needed.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(userIDHeader))
		if id != "" {
			role := domainuser.RoleGuest
			if strings.EqualFold(strings.TrimSpace(c.GetHeader(userRoleHeader)), string(domainuser.RoleAdmin)) {
				role = domainuser.RoleAdmin
			}
			c.Set(principalContextKey, policies.Requester{UserID: id, Role: role})
		}
		c.Next()
	}
}

func currentRequester(c *gin.Context) policies.Requester {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return policies.Requester{}
	}
	p, _ := val.(policies.Requester)
	return p
}
