package output

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/hotas-relay-core/internal/input"
	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// ─── Mock Dependencies ───

type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	fail     error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{messages: make(map[string][][]byte)}
}

func (p *mockPublisher) PublishRaw(topic string, payload []byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.messages[topic] = append(p.messages[topic], payload)
	return nil
}

func (p *mockPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

// ─── Tests ───

func testWriteSet(axis float64) rebind.WriteSet {
	return rebind.WriteSet{
		"vjoy": input.DeviceState{
			Buttons: []bool{false},
			Axes:    []float64{axis},
		},
	}
}

func TestMQTTSinkPublishesChangedState(t *testing.T) {
	pub := newMockPublisher()
	sink := NewMQTTSink(pub)

	if err := sink.Commit(context.Background(), testWriteSet(0.5)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	topic := "hotasrelay/output/virtual/vjoy"
	if got := pub.count(topic); got != 1 {
		t.Fatalf("expected 1 message on %s, got %d", topic, got)
	}
}

func TestMQTTSinkSkipsUnchangedState(t *testing.T) {
	pub := newMockPublisher()
	sink := NewMQTTSink(pub)
	ctx := context.Background()

	sink.Commit(ctx, testWriteSet(0.5)) //nolint:errcheck
	sink.Commit(ctx, testWriteSet(0.5)) //nolint:errcheck
	sink.Commit(ctx, testWriteSet(0.7)) //nolint:errcheck

	topic := "hotasrelay/output/virtual/vjoy"
	if got := pub.count(topic); got != 2 {
		t.Errorf("expected 2 messages (unchanged tick suppressed), got %d", got)
	}
}

func TestMQTTSinkReportsCommitFaults(t *testing.T) {
	pub := newMockPublisher()
	pub.fail = errors.New("broker gone")
	sink := NewMQTTSink(pub)

	err := sink.Commit(context.Background(), testWriteSet(0.5))
	if !errors.Is(err, ErrCommitFailed) {
		t.Errorf("expected ErrCommitFailed, got %v", err)
	}

	// Failed publish is not cached; the next commit retries.
	pub.fail = nil
	if err := sink.Commit(context.Background(), testWriteSet(0.5)); err != nil {
		t.Fatalf("retry commit failed: %v", err)
	}
	if got := pub.count("hotasrelay/output/virtual/vjoy"); got != 1 {
		t.Errorf("expected retry to publish, got %d messages", got)
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	if sink.Last() != nil {
		t.Error("expected empty sink before commits")
	}

	ws := testWriteSet(0.25)
	if err := sink.Commit(ctx, ws); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	last := sink.Last()
	if last["vjoy"].Axes[0] != 0.25 {
		t.Errorf("expected stored axis 0.25, got %g", last["vjoy"].Axes[0])
	}
	if sink.Commits() != 1 {
		t.Errorf("expected 1 commit, got %d", sink.Commits())
	}

	// Stored copy is isolated from later caller mutations.
	ws["vjoy"].Axes[0] = -1
	if sink.Last()["vjoy"].Axes[0] != 0.25 {
		t.Error("sink must store an isolated copy")
	}
}
