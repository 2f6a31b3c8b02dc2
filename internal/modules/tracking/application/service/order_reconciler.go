package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"OrderPulse/internal/modules/tracking/domain/order"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

// RoomJoiner 由 RoomSubscriber 实现
type RoomJoiner interface {
	JoinOrderRoom(orderID string) bool
	LeaveOrderRoom(orderID string) bool
}

// OrderFetcher REST 兜底查询
type OrderFetcher interface {
	FetchOrder(ctx context.Context, orderID string) (order.Record, error)
}

// OrderLister 拉取当前用户的订单列表，新的在前
type OrderLister interface {
	FetchMyOrders(ctx context.Context) ([]order.Record, error)
}

const refetchTimeout = 10 * time.Second

// OrderReconciler 会话关心的订单集合，把推送增量和 REST 快照合并在一起。
// 所有修改都在 mu 内完成，观察者在解锁后调用。
type OrderReconciler struct {
	mu         sync.Mutex
	orders     []order.Record
	focusID    string
	deliveries map[string]order.DeliveryInfo
	stats      json.RawMessage
	lastUpdate time.Time

	rooms   RoomJoiner
	fetcher OrderFetcher // 非空时未知订单的 updated 会触发一次 REST 拉取

	observers map[int]func()
	nextObs   int

	now func() time.Time
}

type noRooms struct{}

func (noRooms) JoinOrderRoom(string) bool  { return false }
func (noRooms) LeaveOrderRoom(string) bool { return false }

func NewOrderReconciler(rooms RoomJoiner) *OrderReconciler {
	if rooms == nil {
		rooms = noRooms{}
	}
	return &OrderReconciler{
		rooms:      rooms,
		deliveries: make(map[string]order.DeliveryInfo),
		observers:  make(map[int]func()),
		now:        time.Now,
	}
}

// EnableRefetch 未知订单的更新不再直接丢弃，而是异步拉取快照
func (r *OrderReconciler) EnableRefetch(f OrderFetcher) {
	r.mu.Lock()
	r.fetcher = f
	r.mu.Unlock()
}

// ApplyDelta 处理 single_order_update
func (r *OrderReconciler) ApplyDelta(u ws.SingleOrderUpdate) {
	switch u.Operation {
	case ws.OperationCreated:
		rec, err := order.ParseRecord(u.Order)
		if err != nil {
			zlog.Warn("skip created delta without order", zap.Error(err))
			return
		}
		changes := r.parseChanges(u.Changes)
		r.mutate(func() bool {
			if i := r.indexLocked(rec.ID()); i >= 0 {
				r.orders[i] = r.orders[i].Merge(rec, changes)
				return true
			}
			r.insertFrontLocked(rec.Merge(changes))
			return true
		})

	case ws.OperationUpdated:
		rec, err := order.ParseRecord(u.Order)
		id := u.OrderID
		if err == nil {
			id = rec.ID()
		}
		if id == "" {
			zlog.Warn("skip updated delta without order id", zap.Error(err))
			return
		}
		changes := r.parseChanges(u.Changes)
		var unknown bool
		r.mutate(func() bool {
			i := r.indexLocked(id)
			if i < 0 {
				unknown = true
				return false
			}
			r.orders[i] = r.orders[i].Merge(rec, changes)
			return true
		})
		if unknown {
			r.handleUnknown(id)
		}

	case ws.OperationDeleted:
		id := u.OrderID
		if id == "" {
			if rec, err := order.ParseRecord(u.Order); err == nil {
				id = rec.ID()
			}
		}
		if id == "" {
			zlog.Warn("skip deleted delta without order id")
			return
		}
		r.remove(id)

	default:
		zlog.Warn("unknown order operation", zap.String("operation", u.Operation))
	}
}

// ApplyCustomerOrderUpdate 已知订单合并；未知订单只在 order_created 时插入
func (r *OrderReconciler) ApplyCustomerOrderUpdate(u ws.CustomerOrderUpdate) {
	rec, err := order.ParseRecord(u.Order)
	if err != nil {
		zlog.Warn("skip customer order update without order", zap.String("type", u.Type), zap.Error(err))
		return
	}
	r.mutate(func() bool {
		if i := r.indexLocked(rec.ID()); i >= 0 {
			r.orders[i] = r.orders[i].Merge(rec)
			return true
		}
		if u.Type == ws.TypeOrderCreated {
			r.insertFrontLocked(rec)
			return true
		}
		zlog.Debug("drop customer order update for unknown order",
			zap.String("order_id", rec.ID()), zap.String("type", u.Type))
		return false
	})
}

// ApplySnapshot REST 快照：已知则合并，未知插到最前
func (r *OrderReconciler) ApplySnapshot(rec order.Record) {
	if rec.ID() == "" {
		zlog.Warn("skip snapshot without _id")
		return
	}
	r.mutate(func() bool {
		r.upsertLocked(rec)
		return true
	})
}

// ApplySnapshots 批量快照，recs 按新到旧排列。
// 结果按服务端顺序排列，已知订单合并字段，列表里没有的本地订单排在后面；观察者只通知一次
func (r *OrderReconciler) ApplySnapshots(recs []order.Record) {
	r.mutate(func() bool {
		merged := make([]order.Record, 0, len(recs)+len(r.orders))
		seen := make(map[string]bool, len(recs))
		for _, rec := range recs {
			id := rec.ID()
			if id == "" || seen[id] {
				zlog.Warn("skip snapshot without _id or duplicated", zap.String("order_id", id))
				continue
			}
			seen[id] = true
			if i := r.indexLocked(id); i >= 0 {
				merged = append(merged, r.orders[i].Merge(rec))
			} else {
				merged = append(merged, rec.Clone())
			}
		}
		if len(seen) == 0 {
			return false
		}
		for _, rec := range r.orders {
			if !seen[rec.ID()] {
				merged = append(merged, rec)
			}
		}
		r.orders = merged
		return true
	})
}

// SyncOrders 用 REST 列表补齐会话之前就存在的订单，失败时保留现有集合
func (r *OrderReconciler) SyncOrders(ctx context.Context, l OrderLister) error {
	recs, err := l.FetchMyOrders(ctx)
	if err != nil {
		zlog.Warn("sync orders failed", zap.Error(err))
		return err
	}
	r.ApplySnapshots(recs)
	zlog.Debug("orders synced", zap.Int("count", len(recs)))
	return nil
}

// SetCurrentOrderForTracking 切换关注的订单；rec 为 nil 表示取消关注
func (r *OrderReconciler) SetCurrentOrderForTracking(rec order.Record) {
	var leave, join string
	r.mutate(func() bool {
		newID := ""
		if rec != nil {
			newID = rec.ID()
			if newID == "" {
				zlog.Warn("skip tracking focus without _id")
				return false
			}
			r.upsertLocked(rec)
		}
		if newID == r.focusID {
			return rec != nil
		}
		leave = r.focusID
		join = newID
		r.focusID = newID
		return true
	})
	if leave != "" {
		r.rooms.LeaveOrderRoom(leave)
	}
	if join != "" {
		r.rooms.JoinOrderRoom(join)
	}
}

// ApplyDeliveryUpdate 整体覆盖该订单的配送信息，未知订单丢弃
func (r *OrderReconciler) ApplyDeliveryUpdate(u ws.DeliveryUpdate) {
	if u.OrderID == "" {
		zlog.Warn("skip delivery update without orderId")
		return
	}
	r.mutate(func() bool {
		if r.indexLocked(u.OrderID) < 0 {
			zlog.Debug("drop delivery update for unknown order", zap.String("order_id", u.OrderID))
			return false
		}
		r.deliveries[u.OrderID] = order.DeliveryInfo{
			OrderID:               u.OrderID,
			Status:                order.Status(u.Status),
			EstimatedDeliveryTime: u.EstimatedDeliveryTime,
			OrderType:             u.OrderType,
			UpdatedAt:             r.now(),
		}
		return true
	})
}

// ApplyStats order_stats_update 原样保存
func (r *OrderReconciler) ApplyStats(stats json.RawMessage) {
	r.mutate(func() bool {
		r.stats = append(json.RawMessage(nil), stats...)
		return true
	})
}

// Rejoin 连接（重新）建立后重新加入当前关注订单的房间
func (r *OrderReconciler) Rejoin() {
	r.mu.Lock()
	id := r.focusID
	r.mu.Unlock()
	if id != "" {
		r.rooms.JoinOrderRoom(id)
	}
}

func (r *OrderReconciler) GetOrderByID(id string) (order.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.orders[i].Clone(), true
	}
	return nil, false
}

func (r *OrderReconciler) GetOrdersByStatus(status order.Status) []order.Record {
	return r.filter(func(rec order.Record) bool { return rec.Status() == status })
}

// GetActiveOrders 非 delivered / cancelled
func (r *OrderReconciler) GetActiveOrders() []order.Record {
	return r.filter(func(rec order.Record) bool { return !rec.Status().IsTerminal() })
}

func (r *OrderReconciler) Orders() []order.Record {
	return r.filter(func(order.Record) bool { return true })
}

func (r *OrderReconciler) CurrentOrder() (order.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.focusID == "" {
		return nil, false
	}
	if i := r.indexLocked(r.focusID); i >= 0 {
		return r.orders[i].Clone(), true
	}
	return nil, false
}

func (r *OrderReconciler) GetDeliveryInfo(id string) (order.DeliveryInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.deliveries[id]
	return info, ok
}

func (r *OrderReconciler) OrderStats() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(json.RawMessage(nil), r.stats...)
}

// LastUpdate 最近一次状态变化的时间
func (r *OrderReconciler) LastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdate
}

func (r *OrderReconciler) Subscribe(fn func()) func() {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

func (r *OrderReconciler) remove(id string) {
	var leave bool
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i >= 0 {
			r.orders = append(r.orders[:i:i], r.orders[i+1:]...)
		}
		delete(r.deliveries, id)
		if r.focusID == id {
			r.focusID = ""
			leave = true
		}
		return i >= 0 || leave
	})
	if leave {
		r.rooms.LeaveOrderRoom(id)
	}
}

func (r *OrderReconciler) handleUnknown(id string) {
	r.mu.Lock()
	f := r.fetcher
	r.mu.Unlock()
	if f == nil {
		zlog.Debug("drop update for unknown order", zap.String("order_id", id))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
		defer cancel()
		rec, err := f.FetchOrder(ctx, id)
		if err != nil {
			zlog.Warn("refetch unknown order failed", zap.String("order_id", id), zap.Error(err))
			return
		}
		r.ApplySnapshot(rec)
	}()
}

func (r *OrderReconciler) parseChanges(raw json.RawMessage) order.Record {
	changes, err := order.ParseFields(raw)
	if err != nil {
		zlog.Warn("ignore malformed changes", zap.Error(err))
		return order.Record{}
	}
	return changes
}

// mutate 在锁内执行 fn，fn 返回 true 表示状态有变化
func (r *OrderReconciler) mutate(fn func() bool) {
	r.mu.Lock()
	changed := fn()
	if changed {
		r.lastUpdate = r.now()
	}
	var fns []func()
	if changed {
		fns = make([]func(), 0, len(r.observers))
		for _, o := range r.observers {
			fns = append(fns, o)
		}
	}
	r.mu.Unlock()

	for _, o := range fns {
		o()
	}
}

func (r *OrderReconciler) indexLocked(id string) int {
	for i, rec := range r.orders {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

func (r *OrderReconciler) insertFrontLocked(rec order.Record) {
	r.orders = append([]order.Record{rec.Clone()}, r.orders...)
}

func (r *OrderReconciler) upsertLocked(rec order.Record) {
	if i := r.indexLocked(rec.ID()); i >= 0 {
		r.orders[i] = r.orders[i].Merge(rec)
		return
	}
	r.insertFrontLocked(rec)
}

func (r *OrderReconciler) filter(keep func(order.Record) bool) []order.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]order.Record, 0, len(r.orders))
	for _, rec := range r.orders {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}
