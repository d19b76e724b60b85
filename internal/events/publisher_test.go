package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limbo/stakesave/internal/events"
	"github.com/limbo/stakesave/pkg/entity"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (mw *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if mw.err != nil {
		return mw.err
	}
	mw.msgs = append(mw.msgs, msgs...)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	ctx := context.Background()
	t.Run("message layout", func(t *testing.T) {
		w := &mockWriter{}
		p := events.NewKafkaPublisherWithWriter(w, "stakesave.plans")
		err := p.Publish(ctx, &entity.PlanEvent{
			Type:       entity.EventDailyPaid,
			PlanID:     12,
			Owner:      "0xA11CE",
			CurrentDay: 3,
		})
		require.NoError(t, err)
		require.Len(t, w.msgs, 1)
		msg := w.msgs[0]
		assert.Equal(t, "stakesave.plans", msg.Topic)
		assert.Equal(t, "12", string(msg.Key))
		assert.Equal(t, "event_type", msg.Headers[0].Key)
		assert.Equal(t, "DailyPaid", string(msg.Headers[0].Value))

		var decoded entity.PlanEvent
		require.NoError(t, sonic.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, int64(3), decoded.CurrentDay)
		assert.NotEmpty(t, decoded.ID)
		assert.False(t, decoded.OccurredAt.IsZero())
	})
	t.Run("pool events keyed by asset", func(t *testing.T) {
		w := &mockWriter{}
		p := events.NewKafkaPublisherWithWriter(w, "stakesave.plans")
		require.NoError(t, p.Publish(ctx, &entity.PlanEvent{Type: entity.EventRewardPoolDrained, Asset: "0xUSDC", Amount: 5}))
		assert.Equal(t, "pool:0xUSDC", string(w.msgs[0].Key))
	})
	t.Run("writer error", func(t *testing.T) {
		w := &mockWriter{err: errors.New("broker down")}
		p := events.NewKafkaPublisherWithWriter(w, "stakesave.plans")
		assert.Error(t, p.Publish(ctx, &entity.PlanEvent{Type: entity.EventPlanFailed, PlanID: 1}))
		assert.NoError(t, p.Close())
		assert.True(t, w.closed)
	})
}

func TestLogPublisher(t *testing.T) {
	buf := &bytes.Buffer{}
	p := events.NewLogPublisher(slog.New(slog.NewJSONHandler(buf, nil)))
	err := p.Publish(context.Background(), &entity.PlanEvent{Type: entity.EventPlanCreated, PlanID: 1, Asset: "0xUSDC"})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"type":"PlanCreated"`)
	assert.Contains(t, buf.String(), `"plan_id":1`)
}
