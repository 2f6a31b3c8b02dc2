package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// TlsHandler 把 http 请求重定向到 https，并带上 HSTS 等安全头
func TlsHandler(host string, port int) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:          true,
		SSLHost:              host + ":" + strconv.Itoa(port),
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
	})
	return func(c *gin.Context) {
		// Process 出错时已经写好了重定向响应
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}
