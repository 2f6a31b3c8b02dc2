package http

import (
	"OrderPulse/internal/config"
	jwtMiddleware "OrderPulse/internal/middleware/jwt"
	orderService "OrderPulse/internal/modules/order/application/service"
	"OrderPulse/internal/modules/order/domain/repository"
	orderHandler "OrderPulse/internal/modules/order/interface/http"
	orderGateway "OrderPulse/internal/modules/order/interface/websocket"
	"OrderPulse/pkg/ssl"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps 路由需要的依赖，由 cmd/OrderPulse 组装
type Deps struct {
	Hub       *ws.Hub
	Signer    *myjwt.Signer
	Orders    orderService.OrderService
	Broadcast orderService.BroadcastService
	Presence  repository.PresenceRepository
}

func NewEngine(d Deps) *gin.Engine {
	GE := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))

	conf := config.GetConfig()
	if conf.MainConfig.UseTLS {
		GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	orderH := orderHandler.NewOrderHandler(d.Orders, d.Presence, d.Hub)
	notifyH := orderHandler.NewNotificationHandler(d.Broadcast)
	gateway := orderGateway.NewGateway(d.Hub, d.Signer, d.Presence)

	// WebSocket 握手在 gateway 内部校验 token
	GE.GET("/wss", gateway.Connect)
	GE.GET("/realtime/online", orderH.Online)

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth(d.Signer))
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
			"role":     c.GetString("role"),
		})
	})
	authed.POST("/orders", orderH.CreateOrder)
	authed.GET("/orders/me", orderH.ListMyOrders)
	authed.GET("/orders/:id", orderH.GetOrder)
	authed.PUT("/orders/:id/status", jwtMiddleware.RequireStaff(), orderH.UpdateStatus)
	authed.POST("/realtime/notify", jwtMiddleware.RequireStaff(), notifyH.Notify)

	return GE
}
