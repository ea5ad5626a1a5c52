// Package realtime delivers server-initiated notifications over WebSocket.
//
// The connection registry is a plain concurrent map from user ID to that
// user's open connections. It knows nothing about transports: the gateway
// registers a connection after the client authenticates with an access
// token, services emit envelopes through the registry, and the writer
// goroutine owned by the gateway drains each connection's send queue.
//
// Delivery is best effort. A send to a connection with a full queue is
// dropped rather than blocking the emitter; a user with no open connections
// simply misses the notification.
package realtime
