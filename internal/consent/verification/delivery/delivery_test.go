package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/platform/kafka/producer"
	"consentd/pkg/platform/circuit"
	"consentd/pkg/platform/sentinel"
)

type fakeProducer struct {
	sent []*producer.Message
	err  error
}

func (f *fakeProducer) Produce(_ context.Context, msg *producer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestKafkaSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues keyed by consent", func(t *testing.T) {
		p := &fakeProducer{}
		s := NewKafkaSender(p, "", nil)
		require.NoError(t, s.Send(ctx, Message{
			ConsentID:   "cns_1",
			Channel:     ChannelSMS,
			Destination: "+919812345678",
			Body:        "code 123456",
		}))

		require.Len(t, p.sent, 1)
		assert.Equal(t, DefaultTopic, p.sent[0].Topic)
		assert.Equal(t, []byte("cns_1"), p.sent[0].Key)
		assert.Equal(t, "sms", p.sent[0].Headers["channel"])

		var n notification
		require.NoError(t, json.Unmarshal(p.sent[0].Value, &n))
		assert.Equal(t, "+919812345678", n.Destination)
	})

	t.Run("broker failure surfaces", func(t *testing.T) {
		s := NewKafkaSender(&fakeProducer{err: errors.New("no brokers")}, "t", nil)
		err := s.Send(ctx, Message{ConsentID: "cns_1", Channel: ChannelEmail, Destination: "p@example.in"})
		assert.Error(t, err)
	})
}

func TestRecorder_Last(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	require.NoError(t, r.Send(ctx, Message{ConsentID: "a", Body: "1"}))
	require.NoError(t, r.Send(ctx, Message{ConsentID: "b", Body: "2"}))
	require.NoError(t, r.Send(ctx, Message{ConsentID: "a", Body: "3"}))

	msg, ok := r.Last("a")
	require.True(t, ok)
	assert.Equal(t, "3", msg.Body)
	_, ok = r.Last("c")
	assert.False(t, ok)
	assert.Equal(t, 3, r.Count())
}

func TestLogSender_MasksDestination(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewLogSender(logger)

	require.NoError(t, s.Send(context.Background(), Message{
		ConsentID:   "cns_1",
		Channel:     ChannelEmail,
		Destination: "priya.sharma@example.in",
		Body:        "code 654321",
	}))

	out := buf.String()
	assert.Contains(t, out, "p***@example.in")
	assert.NotContains(t, out, "priya.sharma")
	assert.NotContains(t, out, "654321")
}

func TestBreakerSender_FailsFastWhenOpen(t *testing.T) {
	ctx := context.Background()
	calls := 0
	failing := SenderFunc(func(context.Context, Message) error {
		calls++
		return errors.New("gateway down")
	})
	s := NewBreakerSender(failing, circuit.New("notifications", circuit.WithFailureThreshold(2)), nil)

	assert.Error(t, s.Send(ctx, Message{ConsentID: "cns_1"}))
	assert.Error(t, s.Send(ctx, Message{ConsentID: "cns_1"}))
	require.Equal(t, 2, calls)

	err := s.Send(ctx, Message{ConsentID: "cns_1"})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 2, calls, "open circuit does not reach the gateway")
}

func TestBreakerSender_PassesThrough(t *testing.T) {
	rec := NewRecorder()
	s := NewBreakerSender(rec, circuit.New("notifications"), nil)
	require.NoError(t, s.Send(context.Background(), Message{ConsentID: "cns_2"}))
	assert.Equal(t, 1, rec.Count())
}
