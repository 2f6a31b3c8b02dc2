package back

import (
	"errors"
	"net/http"

	"OrderPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Result 统一返回入口
func Result(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	// 判断是否为自定义错误
	var e *xerr.CodeError
	if errors.As(err, &e) {
		Error(c, e.Code, e.Message)
		return
	}

	// 默认为系统错误
	Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
}

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    xerr.OK,
		Message: "Success",
		Data:    data,
	})
}

// Error 错误返回，HTTP 状态码与业务码一致（客户端据此判断 REST 兜底是否成功）
func Error(c *gin.Context, code int, message string) {
	status := http.StatusOK
	if code >= 400 && code < 600 {
		status = code
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}
