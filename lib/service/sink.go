package service

import (
	"context"

	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/rabbitmq"
)

// Audit emits one audit trail event. Fire and forget: reconciliation
// outcomes never depend on the broker, without one the event only goes
// to the log.
func (svc *FundhubService) Audit(ctx context.Context, severity, eventType string, payload map[string]interface{}) {
	svc.Logger.Infof("Audit event severity:%s event_type:%s payload:%v", severity, eventType, payload)
	if svc.RabbitMQClient == nil {
		return
	}
	err := svc.RabbitMQClient.PublishAudit(ctx, rabbitmq.AuditEvent{
		Severity:  severity,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		svc.Logger.Errorf("Could not publish audit event event_type:%s %v", eventType, err)
	}
}

// Notify hands an event to the notification consumers. Same contract as
// Audit, losing a notification never blocks or fails reconciliation.
func (svc *FundhubService) Notify(ctx context.Context, eventType string, payload map[string]interface{}) {
	svc.Logger.Infof("Notification event event_type:%s payload:%v", eventType, payload)
	if svc.RabbitMQClient == nil {
		return
	}
	err := svc.RabbitMQClient.PublishNotification(ctx, rabbitmq.NotificationEvent{
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		svc.Logger.Errorf("Could not publish notification event_type:%s %v", eventType, err)
	}
}

// LogWebhook records one webhook delivery, accepted or rejected. Best
// effort, the delivery response never waits for it.
func (svc *FundhubService) LogWebhook(ctx context.Context, log *models.WebhookLog) {
	if _, err := svc.DB.NewInsert().Model(log).Exec(ctx); err != nil {
		svc.Logger.Errorf("Could not write webhook log provider:%s outcome:%s %v", log.Provider, log.Outcome, err)
	}
}

func (svc *FundhubService) RecentWebhookLogs(ctx context.Context, provider, outcome string, limit int) ([]models.WebhookLog, error) {
	logs := []models.WebhookLog{}
	query := svc.DB.NewSelect().Model(&logs).Order("id DESC").Limit(limit)
	if provider != "" {
		query.Where("provider = ?", provider)
	}
	if outcome != "" {
		query.Where("outcome = ?", outcome)
	}
	err := query.Scan(ctx)
	return logs, err
}
