package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// recordingSender captures every Send call.
type recordingSender struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Notification{To: to, Subject: subject, Body: body})
	return s.err
}

func intPtr(v int) *int { return &v }

func sbesRecord() *domain.ImportRecord {
	return &domain.ImportRecord{
		CitationKey: "paper1",
		Title:       "Distributed Consensus Revisited",
		Authors:     "Ana Silva and Bruno Costa",
		EventName:   "SBES",
		Year:        intPtr(2024),
	}
}

func TestNotifier_Match(t *testing.T) {
	n := NewNotifier(&recordingSender{}, nil, 0, zerolog.Nop())

	subs := []domain.Subscriber{
		{ID: 1, Name: "Ana Silva", Email: "ana@example.com"},
		{ID: 2, Name: "  bruno   COSTA ", Email: "bruno@example.com"},
		{ID: 3, Name: "Ana", Email: "other-ana@example.com"},
		{ID: 4, Name: "Carla Souza", Email: "carla@example.com"},
		{ID: 5, Name: "Ana Silva", Email: ""},
	}

	notes := n.Match(sbesRecord(), subs)
	require.Len(t, notes, 2)

	assert.Equal(t, int64(1), notes[0].SubscriberID)
	assert.Equal(t, "ana@example.com", notes[0].To)
	assert.Equal(t, "New article by Ana Silva: Distributed Consensus Revisited", notes[0].Subject)
	assert.Contains(t, notes[0].Body, "Hello Ana Silva,")
	assert.Contains(t, notes[0].Body, "Title: Distributed Consensus Revisited")
	assert.Contains(t, notes[0].Body, "Event: SBES")
	assert.Contains(t, notes[0].Body, "Year: 2024")

	assert.Equal(t, int64(2), notes[1].SubscriberID)
}

func TestNotifier_MatchWithoutYear(t *testing.T) {
	n := NewNotifier(nil, nil, 0, zerolog.Nop())
	rec := sbesRecord()
	rec.Year = nil

	notes := n.Match(rec, []domain.Subscriber{{ID: 1, Name: "Ana Silva", Email: "ana@example.com"}})
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Body, "Year: n/a")
}

func TestNotifier_MatchNoSubscribers(t *testing.T) {
	n := NewNotifier(nil, nil, 0, zerolog.Nop())
	assert.Empty(t, n.Match(sbesRecord(), nil))
}

func TestNotifier_Dispatch(t *testing.T) {
	sender := &recordingSender{}
	metrics := observability.NewMetrics("test_notify_dispatch")
	n := NewNotifier(sender, metrics, time.Second, zerolog.Nop())

	sent := n.Dispatch(context.Background(), []Notification{
		{SubscriberID: 1, To: "ana@example.com", Subject: "s1", Body: "b1"},
		{SubscriberID: 2, To: "bruno@example.com", Subject: "s2", Body: "b2"},
	})

	assert.Equal(t, 2, sent)
	require.Len(t, sender.calls, 2)
	assert.Equal(t, "ana@example.com", sender.calls[0].To)
	assert.Equal(t, "s2", sender.calls[1].Subject)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotificationsSent))
}

func TestNotifier_DispatchFailuresAreSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	metrics := observability.NewMetrics("test_notify_dispatch_fail")
	n := NewNotifier(sender, metrics, 0, zerolog.Nop())

	sent := n.Dispatch(context.Background(), []Notification{
		{To: "ana@example.com"},
		{To: "bruno@example.com"},
	})

	assert.Equal(t, 0, sent)
	assert.Len(t, sender.calls, 2, "a failure must not stop later sends")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotificationsFailed))
}

func TestNotifier_DispatchRecoversPanics(t *testing.T) {
	panicky := SenderFunc(func(context.Context, string, string, string) error {
		panic("boom")
	})
	n := NewNotifier(panicky, nil, 0, zerolog.Nop())

	assert.NotPanics(t, func() {
		sent := n.Dispatch(context.Background(), []Notification{{To: "ana@example.com"}})
		assert.Equal(t, 0, sent)
	})
}

func TestNotifier_SendTimeoutApplied(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	sender := SenderFunc(func(ctx context.Context, _, _, _ string) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})
	n := NewNotifier(sender, nil, 5*time.Second, zerolog.Nop())

	n.Dispatch(context.Background(), []Notification{{To: "ana@example.com"}})
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}

func TestLogSender_NeverFails(t *testing.T) {
	s := NewLogSender(zerolog.Nop())
	assert.NoError(t, s.Send(context.Background(), "ana@example.com", "subject", "body"))
}

func TestNotifier_SendTimeoutBoundsUnresponsiveSMTPServer(t *testing.T) {
	metrics := observability.NewMetrics("test_notify_smtp_timeout")
	n := NewNotifier(silentSMTPSender(t), metrics, 50*time.Millisecond, zerolog.Nop())

	start := time.Now()
	sent := n.Dispatch(context.Background(), []Notification{
		{To: "ana@example.com"},
		{To: "bruno@example.com"},
		{To: "carla@example.com"},
	})

	assert.Zero(t, sent)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.NotificationsFailed))
}

func TestNotifier_DispatchAsync(t *testing.T) {
	release := make(chan struct{})
	sender := &recordingSender{}
	gated := SenderFunc(func(ctx context.Context, to, subject, body string) error {
		<-release
		return sender.Send(ctx, to, subject, body)
	})
	n := NewNotifier(gated, nil, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	n.DispatchAsync(ctx, []Notification{{To: "ana@example.com"}, {To: "bruno@example.com"}})
	cancel()

	short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	err := n.Wait(short)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, n.Wait(context.Background()))
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.calls, 2, "cancelling the caller must not drop notifications")
}

func TestNotifier_DispatchAsyncNothingPending(t *testing.T) {
	n := NewNotifier(&recordingSender{}, nil, 0, zerolog.Nop())
	n.DispatchAsync(context.Background(), nil)
	assert.NoError(t, n.Wait(context.Background()))
}
