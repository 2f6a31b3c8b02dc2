package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	https_server "OrderPulse/api/http"
	"OrderPulse/internal/config"
	"OrderPulse/internal/initial"
	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/internal/modules/order/infrastructure/persistence"
	"OrderPulse/internal/modules/order/infrastructure/presence"
	"OrderPulse/internal/modules/order/interface/event"
	"OrderPulse/internal/modules/order/interface/scheduler"
	"OrderPulse/pkg/redis"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()
	defer zlog.Sync()

	// 2. 基础设施
	db, err := initial.InitGorm()
	if err != nil {
		zlog.Fatal("数据库初始化失败: " + err.Error())
	}
	initial.InitRedis()
	stream, err := initial.InitChangeStream()
	if err != nil {
		zlog.Fatal("订单变更流初始化失败: " + err.Error())
	}

	// 3. 组装
	hub := ws.NewHub()
	signer := myjwt.FromConfig()
	orderRepo := persistence.NewOrderRepository(db)
	presenceRepo := presence.New()
	orderSvc := service.NewOrderService(orderRepo, stream.Publisher, stream.Topic)
	broadcastSvc := service.NewBroadcastService(orderRepo, orderSvc, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := stream.Consumer.Run(ctx, event.NewOrderChangeHandler(broadcastSvc)); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("订单变更消费退出", zap.Error(err))
		}
	}()

	var stats *scheduler.StatsScheduler
	if conf.StatsConfig.Enabled {
		stats = scheduler.NewStatsScheduler(broadcastSvc, conf.StatsConfig.CronExpr)
		if err := stats.Start(); err != nil {
			zlog.Fatal("统计任务启动失败: " + err.Error())
		}
	}

	// 4. 启动 HTTP 服务
	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: https_server.NewEngine(https_server.Deps{
			Hub:       hub,
			Signer:    signer,
			Orders:    orderSvc,
			Broadcast: broadcastSvc,
			Presence:  presenceRepo,
		}),
	}
	go func() {
		zlog.Info(fmt.Sprintf("服务器正在启动，监听地址: %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("服务器启动失败: " + err.Error())
		}
	}()

	// 5. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务器...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("服务器关闭失败", zap.Error(err))
	}
	if stats != nil {
		stats.Stop()
	}
	cancel()
	stream.Close()
	_ = redis.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("服务器已关闭")
}
