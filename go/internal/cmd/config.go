package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/planningpoker/go/internal/gateway"
	"github.com/mcdev12/planningpoker/go/internal/journal"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	DeckFile       string   `env:"DECK_FILE"`

	Room   RoomConfig
	Socket SocketConfig
	NATS   NATSConfig

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

type RoomConfig struct {
	GracePeriod      time.Duration `env:"ROOM_GRACE_PERIOD" envDefault:"5m"`
	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER" envDefault:"64"`
}

type SocketConfig struct {
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
	SSEHeartbeat   time.Duration `env:"SSE_HEARTBEAT" envDefault:"15s"`
	InboundRate    float64       `env:"INBOUND_RATE" envDefault:"20"`
	InboundBurst   int           `env:"INBOUND_BURST" envDefault:"40"`
}

// NATSConfig configures the event journal. An empty URL disables it.
type NATSConfig struct {
	URL           string `env:"NATS_URL"`
	Stream        string `env:"NATS_STREAM" envDefault:"POKER_EVENTS"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"poker.rooms"`
}

// loadConfig reads envFile when it exists and then parses the environment
func loadConfig(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ConnectionConfig() gateway.ConnectionConfig {
	cc := gateway.DefaultConnectionConfig()
	cc.PingInterval = c.Socket.PingInterval
	cc.WriteTimeout = c.Socket.WriteTimeout
	cc.ReadTimeout = c.Socket.ReadTimeout
	cc.MaxMessageSize = c.Socket.MaxMessageSize
	cc.SSEHeartbeat = c.Socket.SSEHeartbeat
	cc.SendBuffer = c.Room.SubscriberBuffer
	cc.InboundRate = rate.Limit(c.Socket.InboundRate)
	cc.InboundBurst = c.Socket.InboundBurst
	cc.CheckOrigin = gateway.OriginChecker(c.AllowedOrigins)
	return cc
}

func (c *Config) JetStreamConfig() journal.JetStreamConfig {
	js := journal.DefaultJetStreamConfig()
	js.URL = c.NATS.URL
	js.StreamName = c.NATS.Stream
	js.SubjectPrefix = c.NATS.SubjectPrefix
	return js
}

func setupLogging(cfg *Config, out io.Writer) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}
