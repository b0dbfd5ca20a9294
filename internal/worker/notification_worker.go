package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/service"
)

// Forwarder ships events to an external broker.
type Forwarder interface {
	Handle(ctx context.Context, event events.Event) error
	Close() error
}

// Dependencies are the collaborators the background workers run against.
type Dependencies struct {
	Dispatcher events.Dispatcher
	Resets     ResetCodePurger
	Logger     *zap.Logger
	// Forwarder replaces the Kafka publisher built from cfg.Kafka.
	Forwarder Forwarder
}

// Workers owns everything that runs beside the HTTP server: notification
// subscriptions, the event forwarder and the reset code cleanup.
type Workers struct {
	forwarder Forwarder
	cleanup   *CleanupScheduler
	logger    *zap.Logger
}

// Start validates the cleanup schedule, subscribes the notification
// handlers, forwards every event when a broker is configured, and starts
// the cron. Nothing is subscribed when it returns an error.
func Start(cfg config.Config, deps Dependencies) (*Workers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cleanup, err := NewCleanupScheduler(cfg.Jobs.ResetCleanupSchedule, deps.Resets, logger)
	if err != nil {
		return nil, fmt.Errorf("cleanup schedule %q: %w", cfg.Jobs.ResetCleanupSchedule, err)
	}

	w := &Workers{forwarder: deps.Forwarder, cleanup: cleanup, logger: logger}
	if w.forwarder == nil && cfg.Kafka.Enabled() {
		w.forwarder = events.NewKafkaPublisher(cfg.Kafka, logger)
		logger.Info("forwarding events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var forwarders []events.EventHandler
	if w.forwarder != nil {
		forwarders = append(forwarders, w.forwarder.Handle)
	}
	service.NewNotificationService(deps.Dispatcher, logger, cfg.Notification, forwarders...).RegisterHandlers()

	cleanup.Start()
	return w, nil
}

// Stop waits for a running cleanup job, then flushes and closes the
// forwarder.
func (w *Workers) Stop(ctx context.Context) {
	w.cleanup.Stop(ctx)
	if w.forwarder == nil {
		return
	}
	if err := w.forwarder.Close(); err != nil {
		w.logger.Warn("close event forwarder", zap.Error(err))
	}
}
