package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/adapters/kafka"
	"hermes/pkg/logger"
)

// Publisher emits structured pipeline stage events to Kafka as JSON.
// Publishing is best-effort: a broker outage must never fail the pipeline,
// so errors are logged and swallowed.
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// BaseEvent carries the fields every stage event shares.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	SignalID  string    `json:"signal_id"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GateDecisionEvent records the direction gate's verdict on a signal.
type GateDecisionEvent struct {
	BaseEvent
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Allowed        bool   `json:"allowed"`
	Direction      string `json:"direction"`
	SentimentValue int    `json:"sentiment_value"`
	Reason         string `json:"reason,omitempty"`
}

// RiskDecisionEvent records a risk assessment outcome.
type RiskDecisionEvent struct {
	BaseEvent
	Symbol    string  `json:"symbol"`
	Approved  bool    `json:"approved"`
	RiskScore float64 `json:"risk_score"`
	Reason    string  `json:"reason,omitempty"`
}

// DispatchResultEvent records an order submission outcome.
type DispatchResultEvent struct {
	BaseEvent
	Symbol          string `json:"symbol"`
	Exchange        string `json:"exchange"`
	Success         bool   `json:"success"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// LedgerTransitionEvent records an operation state transition.
type LedgerTransitionEvent struct {
	BaseEvent
	OperationID string `json:"operation_id"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	Profit      string `json:"profit,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// PublishGateDecision emits a gate decision event keyed by signal id.
func (p *Publisher) PublishGateDecision(ctx context.Context, event *GateDecisionEvent) {
	p.publish(ctx, kafka.TopicGateDecisions, event.SignalID, event)
}

// PublishRiskDecision emits a risk assessment event keyed by signal id.
func (p *Publisher) PublishRiskDecision(ctx context.Context, event *RiskDecisionEvent) {
	p.publish(ctx, kafka.TopicRiskDecisions, event.SignalID, event)
}

// PublishDispatchResult emits a dispatch outcome event keyed by signal id.
func (p *Publisher) PublishDispatchResult(ctx context.Context, event *DispatchResultEvent) {
	p.publish(ctx, kafka.TopicDispatchResults, event.SignalID, event)
}

// PublishLedgerTransition emits an operation transition keyed by operation id.
func (p *Publisher) PublishLedgerTransition(ctx context.Context, event *LedgerTransitionEvent) {
	p.publish(ctx, kafka.TopicLedgerTransitions, event.OperationID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish stage event",
			"topic", topic,
			"key", key,
			"error", err,
		)
	}
}

// NewBaseEvent builds the shared envelope for a stage event.
func NewBaseEvent(signalID, userID string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		SignalID:  signalID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}
