package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	forwarders []events.EventHandler
}

// NewNotificationService creates the service. Forwarders receive every
// event after it is logged, e.g. a Kafka publisher.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, forwarders ...events.EventHandler) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     nopIfNil(logger),
		cfg:        cfg,
		forwarders: forwarders,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventGrievanceSubmitted, n.handleGrievanceSubmitted)
	n.dispatcher.Subscribe(events.EventGrievanceStatusChanged, n.handleGrievanceStatusChanged)
	n.dispatcher.Subscribe(events.EventIdentityDeleted, n.handleIdentityEvent)
	n.dispatcher.Subscribe(events.EventIdentityRoleChanged, n.handleIdentityEvent)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)

	for _, forward := range n.forwarders {
		events.SubscribeAll(n.dispatcher, events.AllEventTypes, forward)
	}
}

func (n *NotificationService) handleGrievanceSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("GrievanceSubmitted", zap.String("grievance_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleGrievanceStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("GrievanceStatusChanged", zap.String("grievance_id", event.SubjectID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.GrievanceStatusChangedPayload); ok {
		n.sendEmailNotificationStub(ctx, event, payload.SubmitterID)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleIdentityEvent(_ context.Context, event events.Event) error {
	n.logger.Info("IdentityChanged",
		zap.String("event_type", string(event.Type)),
		zap.String("identity_id", event.SubjectID),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))
	return nil
}

// handlePasswordResetRequested audits a reset code the auth service has
// already mailed.
func (n *NotificationService) handlePasswordResetRequested(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("PasswordResetRequested",
		zap.String("identity_id", event.SubjectID),
		zap.String("email", payload.Email),
		zap.Time("expires_at", payload.ExpiresAt))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, recipientID string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", recipientID),
		zap.String("grievance_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("grievance_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
