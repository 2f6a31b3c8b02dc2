package jwt

import (
	"strings"

	"OrderPulse/pkg/back"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
)

const ClaimsKey = "claims"

// BearerToken 取 Authorization: Bearer xxx，WebSocket 握手时退回到 ?token=
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(c.Query("token"))
}

func Auth(signer *myjwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		claims, err := signer.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("uuid", claims.Uuid)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireStaff 仅门店老板/管理员
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ClaimsKey)
		claims, _ := v.(*myjwt.CustomClaims)
		if !ok || claims == nil || !claims.IsStaff() {
			back.Error(c, xerr.Forbidden, "权限不足")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Claims 取出 Auth 写入的身份
func Claims(c *gin.Context) *myjwt.CustomClaims {
	v, _ := c.Get(ClaimsKey)
	claims, _ := v.(*myjwt.CustomClaims)
	return claims
}
