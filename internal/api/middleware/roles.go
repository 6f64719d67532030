package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRoles 校验已认证身份是否持有任一所需角色。
//
// 必须注册在 AuthMiddleware 之后。角色集合为空或形状不对的令牌
// 按 403 拒绝，而不是默默放行。不需要角色限制的路由直接不挂载
// 这个中间件（空的所需集合等于不限制）。
func RequireRoles(required ...string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(required))
	for _, r := range required {
		allow[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(allow) == 0 {
			c.Next()
			return
		}

		rolesVal, ok := c.Get("roles")
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "missing role claims"})
			c.Abort()
			return
		}
		roles, ok := rolesVal.([]string)
		if !ok || len(roles) == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "missing role claims"})
			c.Abort()
			return
		}

		for _, r := range roles {
			if _, found := allow[strings.ToUpper(strings.TrimSpace(r))]; found {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}
