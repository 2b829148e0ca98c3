package notification

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/usecase"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingHandler struct {
	mu       sync.Mutex
	handled  []usecase.Notification
	failFor  int64
	panicFor int64
	done     chan struct{}
	expected int
}

func (h *recordingHandler) Handle(_ context.Context, source string, n usecase.Notification) error {
	h.mu.Lock()
	h.handled = append(h.handled, n)
	if len(h.handled) == h.expected {
		close(h.done)
	}
	h.mu.Unlock()

	if source != sourceKafka {
		return errors.New("unexpected source " + source)
	}
	if n.PlayerID == h.panicFor {
		panic("boom")
	}
	if n.PlayerID == h.failFor {
		return usecase.ErrNotificationProcessing
	}
	return nil
}

func TestKafkaConsumer_IsolatesFailingEvents(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{pending: []kafka.Message{
		{Offset: 1, Value: []byte(`{"playerId":23,"teamId":14}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"playerId":30,"teamId":10}`)},
		{Offset: 4, Value: []byte(`{"playerId":4,"teamId":10}`)},
		{Offset: 5, Value: []byte(`{"playerId":3,"teamId":14}`)},
	}}
	handler := &recordingHandler{failFor: 30, panicFor: 4, done: make(chan struct{}), expected: 4}
	consumer := NewKafkaConsumer([]MessageReader{reader}, handler, nil, logging.NewNop())

	ctx, cancel := context.WithCancel(t.Context())
	runErr := make(chan error, 1)
	go func() { runErr <- consumer.Run(ctx) }()

	<-handler.done
	// The last event is committed after its handler returns.
	for len(reader.committedOffsets()) < 5 {
		select {
		case err := <-runErr:
			t.Fatalf("consumer stopped early: %v", err)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-runErr; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	got := reader.committedOffsets()
	want := []int64{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected committed offsets got=%v want=%v", got, want)
		}
	}
	if len(handler.handled) != 4 {
		t.Fatalf("unexpected handled count got=%d want=4", len(handler.handled))
	}
}

func TestKafkaConsumer_StopsWhenReaderClosed(t *testing.T) {
	t.Parallel()

	readers := []MessageReader{&fakeReader{closed: true}, &fakeReader{closed: true}}
	consumer := NewKafkaConsumer(readers, &recordingHandler{done: make(chan struct{})}, nil, logging.NewNop())

	if err := consumer.Run(t.Context()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if err := consumer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDecodeNotification(t *testing.T) {
	t.Parallel()

	got, err := DecodeNotification([]byte(`{"playerId":23,"teamId":14,"source":"boxscore"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (usecase.Notification{PlayerID: 23, TeamID: 14}) {
		t.Fatalf("unexpected notification got=%+v", got)
	}

	for _, raw := range []string{`{"playerId":23}`, `{"teamId":14}`, `{"playerId":"23","teamId":14}`, `[]`, ``} {
		if _, err := DecodeNotification([]byte(raw)); !errors.Is(err, ErrMalformedNotification) {
			t.Fatalf("expected malformed notification for %q, got=%v", raw, err)
		}
	}
}
