package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/events"
)

// AuditService writes an audit log line for every record creation.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventRecordCreated, a.handleRecordCreated)
}

func (a *AuditService) handleRecordCreated(_ context.Context, event events.Event) error {
	var fields []string
	if payload, ok := event.Payload.(events.RecordCreatedPayload); ok {
		for name := range payload.Fields {
			fields = append(fields, name)
		}
		sort.Strings(fields)
	}
	a.logger.Info("RecordCreated",
		zap.String("event_id", event.ID),
		zap.String("collection", event.Collection),
		zap.String("record_id", event.RecordID),
		zap.Strings("fields", fields),
		zap.Time("at", event.Timestamp))
	return nil
}
