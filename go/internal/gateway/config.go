package gateway

import (
	"net/http"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// ConnectionConfig holds configuration for subscription channels
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int           // per-channel outbox size
	SSEHeartbeat    time.Duration // comment line interval on event streams
	InboundRate     rate.Limit    // events per second a WebSocket client may submit
	InboundBurst    int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default channel configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		SSEHeartbeat:    15 * time.Second,
		InboundRate:     20,
		InboundBurst:    40,
		CheckOrigin:     OriginChecker([]string{"*"}),
	}
}

// OriginChecker allows WebSocket upgrades from the given origins. "*" allows any.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	if lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
