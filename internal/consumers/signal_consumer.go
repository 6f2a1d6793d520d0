package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/signal"
	"hermes/internal/services/pipeline"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// SignalConsumer ingests inbound trading signals from Kafka and feeds them
// through the pipeline. Duplicate deliveries are absorbed downstream, so a
// redelivered message is safe to process again.
type SignalConsumer struct {
	consumer *kafka.Consumer
	pipeline *pipeline.Pipeline
	log      *logger.Logger
}

// NewSignalConsumer creates a new signal consumer
func NewSignalConsumer(
	consumer *kafka.Consumer,
	pipe *pipeline.Pipeline,
	log *logger.Logger,
) *SignalConsumer {
	return &SignalConsumer{
		consumer: consumer,
		pipeline: pipe,
		log:      log,
	}
}

// signalMessage is the inbound wire format produced by the webhook layer.
type signalMessage struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Price      string    `json:"price"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

// Start consumes inbound signals until the context is cancelled.
func (sc *SignalConsumer) Start(ctx context.Context) error {
	sc.log.Infow("Starting signal consumer", "topic", kafka.TopicSignalsInbound)

	for {
		msg, err := sc.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				sc.log.Info("Signal consumer stopping (context cancelled)")
				return nil
			}
			sc.log.Errorw("Failed to read inbound signal", "error", err)
			continue
		}

		if err := sc.handleMessage(ctx, msg); err != nil {
			sc.log.Errorw("Failed to process inbound signal",
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (sc *SignalConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	sig, err := decodeSignal(msg.Value)
	if err != nil {
		// A malformed message will never parse. Log and move on rather
		// than blocking the partition.
		sc.log.Warnw("Dropping malformed signal message",
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	return sc.pipeline.Process(ctx, sig)
}

func decodeSignal(data []byte) (*signal.Signal, error) {
	var m signalMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal signal")
	}

	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "parse signal id %q", m.ID)
	}

	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return nil, errors.Wrapf(err, "parse price %q", m.Price)
	}

	return &signal.Signal{
		ID:         id,
		Symbol:     m.Symbol,
		Side:       signal.Side(m.Side),
		Price:      price,
		Source:     m.Source,
		Status:     signal.StatusPending,
		ReceivedAt: m.ReceivedAt,
	}, nil
}
