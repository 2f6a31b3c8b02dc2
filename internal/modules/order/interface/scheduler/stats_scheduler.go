package scheduler

import (
	"context"
	"time"

	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultStatsCron = "@every 1m"

const statsTimeout = 10 * time.Second

// StatsScheduler 定时向门店房间广播订单统计
type StatsScheduler struct {
	cron     *cron.Cron
	svc      service.BroadcastService
	cronExpr string
}

func NewStatsScheduler(svc service.BroadcastService, cronExpr string) *StatsScheduler {
	if cronExpr == "" {
		cronExpr = DefaultStatsCron
	}
	return &StatsScheduler{
		// 标准5段Cron表达式（不含秒），也支持 @every
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		svc:      svc,
		cronExpr: cronExpr,
	}
}

func (s *StatsScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronExpr, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	zlog.Info("order stats scheduler started", zap.String("cron", s.cronExpr))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *StatsScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *StatsScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if err := s.svc.BroadcastStats(ctx); err != nil {
		zlog.Error("broadcast order stats failed", zap.Error(err))
	}
}
