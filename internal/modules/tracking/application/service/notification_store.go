package service

import (
	"sync"
	"time"

	"OrderPulse/internal/modules/tracking/domain/notification"
	"OrderPulse/pkg/util"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

const defaultToastDuration = 5 * time.Second

// Toaster 展示一条会自动消失的提示
type Toaster interface {
	Toast(n notification.Notification, ttl time.Duration)
}

// ToasterFunc 把普通函数适配成 Toaster
type ToasterFunc func(n notification.Notification, ttl time.Duration)

func (f ToasterFunc) Toast(n notification.Notification, ttl time.Duration) { f(n, ttl) }

// NotificationStore 最新在前、有上限的通知列表。
// unread 始终等于列表里未读条目的数量。
type NotificationStore struct {
	mu        sync.Mutex
	items     []notification.Notification
	unread    int
	limit     int
	toaster   Toaster
	toastTTL  time.Duration
	observers map[int]func()
	nextObs   int

	now func() time.Time
}

func NewNotificationStore(limit int, toaster Toaster, toastTTL time.Duration) *NotificationStore {
	if limit <= 0 {
		limit = notification.DefaultLimit
	}
	if toastTTL <= 0 {
		toastTTL = defaultToastDuration
	}
	return &NotificationStore{
		limit:     limit,
		toaster:   toaster,
		toastTTL:  toastTTL,
		observers: make(map[int]func()),
		now:       time.Now,
	}
}

// Add 分配 id 后插到最前面，超出上限的旧条目被淘汰
func (s *NotificationStore) Add(n notification.Notification) notification.Notification {
	s.mu.Lock()
	now := s.now()
	n.ID = util.GenerateNotificationID(now)
	n.Read = false
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}

	items := make([]notification.Notification, 0, min(len(s.items)+1, s.limit))
	items = append(items, n)
	items = append(items, s.items...)
	for _, evicted := range items[min(len(items), s.limit):] {
		if !evicted.Read {
			s.unread--
		}
	}
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	s.items = items
	s.unread++
	toaster := s.toaster
	ttl := s.toastTTL
	s.mu.Unlock()

	if toaster != nil && n.Toastable() {
		toaster.Toast(n, ttl)
	}
	s.notify()
	return n
}

// MarkAsRead 只有未读变已读时才减少未读数
func (s *NotificationStore) MarkAsRead(id string) bool {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.items[i].Read = true
				s.unread = max(0, s.unread-1)
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	} else {
		zlog.Debug("mark as read: no unread notification", zap.String("id", id))
	}
	return changed
}

func (s *NotificationStore) MarkAllAsRead() {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()
	s.notify()
}

func (s *NotificationStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.unread = 0
	s.mu.Unlock()
	s.notify()
}

// List 返回副本
func (s *NotificationStore) List() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Subscribe 列表变化时回调，返回取消函数
func (s *NotificationStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *NotificationStore) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
