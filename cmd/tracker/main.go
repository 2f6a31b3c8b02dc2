package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OrderPulse/internal/config"
	"OrderPulse/internal/modules/tracking/application/service"
	"OrderPulse/internal/modules/tracking/domain/notification"
	"OrderPulse/internal/modules/tracking/infrastructure/api"
	"OrderPulse/internal/modules/tracking/interface/event"
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tracker",
		Short:         "订单实时通知客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newWatchCommand(), newTokenCommand())
	return root
}

type watchOptions struct {
	server  string
	api     string
	token   string
	orderID string
	refetch bool
}

func newWatchCommand() *cobra.Command {
	rc := config.GetConfig().RealtimeConfig
	opts := watchOptions{server: rc.ServerURL, api: rc.APIBaseURL, token: rc.Token, refetch: rc.RefetchUnknown}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "连接 /wss 并打印通知和订单变化",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", opts.server, "WebSocket 地址")
	cmd.Flags().StringVar(&opts.api, "api", opts.api, "REST 地址")
	cmd.Flags().StringVar(&opts.token, "token", opts.token, "JWT")
	cmd.Flags().StringVar(&opts.orderID, "order", "", "要跟踪的订单 id")
	cmd.Flags().BoolVar(&opts.refetch, "refetch", opts.refetch, "收到未知订单的推送时用 REST 拉取")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var uid, username, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "用 jwtConfig 签发一个测试 token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				username = uid
			}
			tok, err := myjwt.FromConfig().GenerateToken(uid, username, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "用户 uuid")
	cmd.Flags().StringVar(&username, "username", "", "用户名，默认同 uid")
	cmd.Flags().StringVar(&role, "role", myjwt.RoleCustomer, "customer / storeOwner / admin")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func runWatch(ctx context.Context, opts watchOptions) error {
	if opts.token == "" {
		return fmt.Errorf("token is required")
	}
	rc := config.GetConfig().RealtimeConfig
	tokens := socket.StaticToken(opts.token)

	manager := socket.NewManager(socket.Config{
		URL:              opts.server,
		BaseDelay:        time.Duration(rc.ReconnectBaseDelayMs) * time.Millisecond,
		MaxDelay:         time.Duration(rc.ReconnectMaxDelayMs) * time.Millisecond,
		MaxAttempts:      rc.MaxReconnectAttempts,
		HandshakeTimeout: time.Duration(rc.HandshakeTimeoutSec) * time.Second,
	}, socket.NewGorillaDialer(time.Duration(rc.HandshakeTimeoutSec)*time.Second, ws.PongWait+10*time.Second), tokens)
	defer manager.Close()

	toast := service.ToasterFunc(func(n notification.Notification, ttl time.Duration) {
		zlog.Info("toast", zap.String("title", n.Title), zap.String("message", n.Message), zap.Duration("ttl", ttl))
	})
	store := service.NewNotificationStore(rc.NotificationLimit, toast, time.Duration(rc.ToastSeconds)*time.Second)
	reconciler := service.NewOrderReconciler(service.NewRoomSubscriber(manager))
	client := api.NewOrderClient(opts.api, tokens, 10*time.Second)
	if opts.refetch {
		reconciler.EnableRefetch(client)
	}

	binder := event.NewBinder(manager, store, reconciler, func(msg string) {
		zlog.Warn("alert", zap.String("message", msg))
	})
	binder.EnableOrderSync(client)
	binder.Bind()
	defer binder.Unbind()

	manager.Watch(func(st socket.Status) {
		zlog.Info("connection", zap.String("state", string(st.State)), zap.Int("attempts", st.Attempts),
			zap.String("last_error", st.LastError), zap.Bool("lost", st.Lost))
	})
	store.Subscribe(func() {
		zlog.Info("notifications", zap.Int("unread", store.UnreadCount()), zap.Int("total", len(store.List())))
	})

	manager.Connect()

	if opts.orderID != "" {
		tracker := service.NewTracker(reconciler, client)
		view, err := tracker.StartTracking(ctx, opts.orderID)
		if err != nil {
			return err
		}
		logView(view)
		defer tracker.StopTracking()
		unsubscribe := reconciler.Subscribe(func() {
			if v, ok := tracker.View(); ok {
				logView(v)
			}
		})
		defer unsubscribe()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	manager.Disconnect()
	zlog.Sync()
	return nil
}

func logView(v service.TrackingView) {
	zlog.Info("tracking",
		zap.String("order_number", v.OrderNumber),
		zap.String("status", v.StatusDisplay),
		zap.Float64("progress", v.Progress),
		zap.Bool("active", v.IsActive),
		zap.Time("estimated_completion", v.EstimatedCompletion),
		zap.Time("last_updated", v.LastUpdated))
}
