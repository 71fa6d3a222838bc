package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/deck"
	"github.com/mcdev12/planningpoker/go/internal/gateway"
	"github.com/mcdev12/planningpoker/go/internal/journal"
	"github.com/mcdev12/planningpoker/go/internal/metrics"
	"github.com/mcdev12/planningpoker/go/internal/room"
)

type Services struct {
	Registry *room.Registry
	Gateway  *gateway.Service
	Metrics  *metrics.Collector

	relay     *journal.Relay
	publisher *journal.JetStreamPublisher
}

func setupServices(cfg *Config, reg prometheus.Registerer) (*Services, error) {
	// Wire up dependency injection chain
	// Deck → Metrics/Journal → Room registry → Gateway

	d, err := deck.LoadOrDefault(cfg.DeckFile)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(reg)

	opts := []room.Option{
		room.WithGracePeriod(cfg.Room.GracePeriod),
		room.WithDeck(d),
		room.WithMetrics(collector),
	}

	services := &Services{Metrics: collector}

	if cfg.NATS.URL != "" {
		publisher, err := journal.NewJetStreamPublisher(cfg.JetStreamConfig())
		if err != nil {
			return nil, fmt.Errorf("create JetStream publisher: %w", err)
		}
		services.publisher = publisher
		services.relay = journal.NewRelay(publisher, collector, journal.DefaultRelayConfig())
		opts = append(opts, room.WithJournal(services.relay))

		log.Info().
			Str("nats_url", cfg.NATS.URL).
			Str("stream", cfg.NATS.Stream).
			Msg("event journal enabled")
	}

	services.Registry = room.NewRegistry(opts...)
	services.Gateway = gateway.NewService(gateway.Config{ConnectionConfig: cfg.ConnectionConfig()}, services.Registry)

	log.Info().
		Str("deck", d.Name).
		Int("cards", len(d.Cards)).
		Dur("grace_period", cfg.Room.GracePeriod).
		Msg("services ready")

	return services, nil
}

// Start runs background workers until ctx is cancelled
func (s *Services) Start(ctx context.Context) {
	if s.relay != nil {
		go s.relay.Start(ctx)
	}
}

// Stop closes every subscription and waits for the journal to flush.
// The context passed to Start must already be cancelled.
func (s *Services) Stop() {
	s.Gateway.Stop()
	s.Registry.Shutdown()

	if s.relay != nil {
		s.relay.Wait()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}
}
