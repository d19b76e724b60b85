// Package events delivers plan facts to external observers.
package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/limbo/stakesave/pkg/entity"
)

const schemaVersion = "1"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes one message per fact, keyed by plan id so facts of a plan stay ordered
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, cfg.Topic)
}

func NewKafkaPublisherWithWriter(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
	}
}

func (kp *KafkaPublisher) Publish(ctx context.Context, event *entity.PlanEvent) error {
	stamp(event)
	data, err := sonic.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: kp.topic,
		Key:   []byte(eventKey(event)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		},
	}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	slog.Debug("published plan event", slog.String("type", string(event.Type)), slog.Int64("plan_id", event.PlanID))
	return nil
}

func (kp *KafkaPublisher) Close() error {
	return kp.writer.Close()
}

// LogPublisher is used when no broker is configured
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (lp *LogPublisher) Publish(ctx context.Context, event *entity.PlanEvent) error {
	stamp(event)
	lp.logger.InfoContext(ctx, "plan event",
		slog.String("id", event.ID),
		slog.String("type", string(event.Type)),
		slog.Int64("plan_id", event.PlanID),
		slog.String("owner", event.Owner),
		slog.String("asset", event.Asset),
		slog.Int64("current_day", event.CurrentDay),
		slog.Int64("amount", event.Amount),
	)
	return nil
}

func (lp *LogPublisher) Close() error {
	return nil
}

func stamp(event *entity.PlanEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
}

func eventKey(event *entity.PlanEvent) string {
	if event.PlanID == 0 {
		return "pool:" + event.Asset
	}
	return strconv.FormatInt(event.PlanID, 10)
}
