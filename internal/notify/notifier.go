package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bibliotheca/catalog-service/internal/authors"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/observability"
)

// Notification is one message addressed to one subscriber.
type Notification struct {
	SubscriberID int64
	To           string
	Subject      string
	Body         string
}

// Notifier matches subscribers against article authors and dispatches
// notifications. Delivery is best-effort: failures are logged and counted,
// never returned.
type Notifier struct {
	sender      Sender
	metrics     *observability.Metrics
	sendTimeout time.Duration
	logger      zerolog.Logger

	inflight sync.WaitGroup
}

// NewNotifier creates a Notifier. A nil sender falls back to a LogSender;
// metrics may be nil.
func NewNotifier(sender Sender, metrics *observability.Metrics, sendTimeout time.Duration, logger zerolog.Logger) *Notifier {
	logger = logger.With().Str("component", "notifier").Logger()
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Notifier{
		sender:      sender,
		metrics:     metrics,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Match returns one notification for every subscriber whose name equals,
// ignoring case and whitespace runs, one of the record's authors.
func (n *Notifier) Match(rec *domain.ImportRecord, subscribers []domain.Subscriber) []Notification {
	var out []Notification
	for _, sub := range subscribers {
		if sub.Email == "" || !authors.Contains(rec.Authors, sub.Name) {
			continue
		}
		out = append(out, Notification{
			SubscriberID: sub.ID,
			To:           sub.Email,
			Subject:      fmt.Sprintf("New article by %s: %s", sub.Name, rec.Title),
			Body:         composeBody(sub.Name, rec),
		})
	}
	return out
}

func composeBody(name string, rec *domain.ImportRecord) string {
	year := "n/a"
	if rec.Year != nil {
		year = strconv.Itoa(*rec.Year)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", name)
	sb.WriteString("A new article listing you as an author was added to the catalog.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", rec.Title)
	fmt.Fprintf(&sb, "Authors: %s\n", rec.Authors)
	fmt.Fprintf(&sb, "Event: %s\n", rec.EventName)
	fmt.Fprintf(&sb, "Year: %s\n", year)
	return sb.String()
}

// Dispatch sends every notification and returns how many were accepted by the sender.
func (n *Notifier) Dispatch(ctx context.Context, notes []Notification) int {
	sent := 0
	for _, note := range notes {
		err := n.send(ctx, note)
		if n.metrics != nil {
			n.metrics.RecordNotification(err)
		}
		if err != nil {
			n.logger.Warn().
				Err(err).
				Int64("subscriber_id", note.SubscriberID).
				Str("to", note.To).
				Msg("failed to send notification")
			continue
		}
		sent++
	}
	return sent
}

// DispatchAsync sends notes on a background goroutine that outlives the
// cancellation of ctx. Wait drains it.
func (n *Notifier) DispatchAsync(ctx context.Context, notes []Notification) {
	if len(notes) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	n.inflight.Go(func() {
		sent := n.Dispatch(ctx, notes)
		n.logger.Info().
			Int("sent", sent).
			Int("failed", len(notes)-sent).
			Msg("notifications dispatched")
	})
}

// Wait blocks until every background dispatch has finished or ctx ends.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifications still in flight: %w", ctx.Err())
	}
}

func (n *Notifier) send(ctx context.Context, note Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	if n.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.sendTimeout)
		defer cancel()
	}
	return n.sender.Send(ctx, note.To, note.Subject, note.Body)
}
