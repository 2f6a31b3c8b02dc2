package service

import (
	"context"
	"errors"
	"time"

	"OrderPulse/internal/modules/tracking/domain/order"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

var ErrNoFetcher = errors.New("tracking: order not loaded and no REST fallback configured")

// TrackingView 单个订单追踪页需要的派生信息
type TrackingView struct {
	Order               order.Record
	Status              order.Status
	StatusDisplay       string
	OrderNumber         string
	LastUpdated         time.Time
	IsActive            bool
	Progress            float64
	EstimatedCompletion time.Time
	Delivery            *order.DeliveryInfo
}

// Tracker 追踪单个订单：本地集合优先，找不到时走 REST
type Tracker struct {
	reconciler *OrderReconciler
	fetcher    OrderFetcher
}

func NewTracker(reconciler *OrderReconciler, fetcher OrderFetcher) *Tracker {
	return &Tracker{reconciler: reconciler, fetcher: fetcher}
}

func (t *Tracker) StartTracking(ctx context.Context, orderID string) (TrackingView, error) {
	rec, ok := t.reconciler.GetOrderByID(orderID)
	if !ok {
		if t.fetcher == nil {
			return TrackingView{}, ErrNoFetcher
		}
		var err error
		rec, err = t.fetcher.FetchOrder(ctx, orderID)
		if err != nil {
			zlog.Error("fetch order for tracking failed", zap.String("order_id", orderID), zap.Error(err))
			return TrackingView{}, err
		}
	}
	t.reconciler.SetCurrentOrderForTracking(rec)
	view, _ := t.View()
	return view, nil
}

func (t *Tracker) StopTracking() {
	t.reconciler.SetCurrentOrderForTracking(nil)
}

// View 当前关注订单的派生视图，没有关注订单时返回 false
func (t *Tracker) View() (TrackingView, bool) {
	rec, ok := t.reconciler.CurrentOrder()
	if !ok {
		return TrackingView{}, false
	}

	var delivery *order.DeliveryInfo
	if info, ok := t.reconciler.GetDeliveryInfo(rec.ID()); ok {
		delivery = &info
	}

	last := rec.UpdatedAt()
	if last.IsZero() {
		last = rec.CreatedAt()
	}
	st := rec.Status()
	return TrackingView{
		Order:               rec,
		Status:              st,
		StatusDisplay:       order.StatusDisplay(st),
		OrderNumber:         rec.OrderNumber(),
		LastUpdated:         last,
		IsActive:            !st.IsTerminal(),
		Progress:            order.Progress(st),
		EstimatedCompletion: order.EstimatedCompletion(rec, delivery),
		Delivery:            delivery,
	}, true
}
