package realtime

import "time"

// Security/performance limits for the notification gateway.
const (
	// Max bytes per websocket frame read (hard limit). Client frames are
	// tiny (hello/authenticate), so this is generous.
	maxFrameBytes = 16 << 10 // 16 KiB

	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (client frames per window). The client
	// only ever sends handshake frames, so the limit is tight.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second

	// How long an unauthenticated connection may linger before it is
	// closed.
	authDeadline = 30 * time.Second
)
