package telemetry

import (
	"context"
	"time"

	"ai-deptdocs-be/internal/pkg/logger"
	pkgEvents "ai-deptdocs-be/pkg/events"
	pktNats "ai-deptdocs-be/pkg/nats"
)

// NatsPublisher forwards completed exchanges to the NATS bus for analytics.
// A nil inner publisher makes every call a no-op, so the chatbot keeps
// working when NATS is not configured.
type NatsPublisher struct {
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewNatsPublisher(publisher *pktNats.Publisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

// ExchangeCompleted emits CHAT_EXCHANGE_COMPLETED. Failures are logged,
// never surfaced to the caller.
func (p *NatsPublisher) ExchangeCompleted(ctx context.Context, sessionID, query, answer string, ragUsed bool) {
	if p.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	evt := pkgEvents.NewChatExchangeCompleted(sessionID, query, answer, ragUsed)
	if err := p.publisher.Publish(pubCtx, evt); err != nil {
		p.logger.Error("TELEMETRY", "Failed to publish CHAT_EXCHANGE_COMPLETED event", map[string]interface{}{"error": err.Error()})
	}
}
