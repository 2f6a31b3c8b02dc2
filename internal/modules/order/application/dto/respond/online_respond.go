package respond

// OnlineRespond GET /realtime/online
type OnlineRespond struct {
	// Online 全部实例的在线用户数（Redis），Local 为本实例
	Online int64 `json:"online"`
	Local  int   `json:"local"`
}
