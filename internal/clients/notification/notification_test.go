package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

type nopObserver struct{}

func (nopObserver) RemoteAttempt(context.Context, string, string, time.Duration) {}

type fakePublisher struct {
	published []amqp.Publishing
	failures  int
}

func (p *fakePublisher) Publish(_, _ string, publishing amqp.Publishing) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, publishing)

	return nil
}

type fakeOutboxRepo struct {
	inserted []outbox.Message
}

func (r *fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	r.inserted = append(r.inserted, msg)
	return nil
}

func (r *fakeOutboxRepo) GetPending(context.Context, int) ([]outbox.Message, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkPublished(context.Context, int64) error { return nil }

func (r *fakeOutboxRepo) MarkFailed(context.Context, int64, string, time.Time) error { return nil }

func newTestClient(pub *fakePublisher, repo *fakeOutboxRepo, maxAttempts int) *Client {
	caller := remote.NewCaller(remote.Config{
		Service:      "notification",
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
	}, nopObserver{}, apperrors.IsTransient, remote.WithSleep(
		func(context.Context, time.Duration) error { return nil },
	))

	return NewClient(pub, repo, caller, "notifications", 5)
}

func TestNotifyPublishes(t *testing.T) {
	pub := &fakePublisher{}
	repo := &fakeOutboxRepo{}
	client := newTestClient(pub, repo, 2)

	client.Notify(context.Background(), 42, TypeOrderPaid, 7, map[string]any{"totalPriceCents": int64(5000)})

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}

	var msg message
	if err := json.Unmarshal(pub.published[0].Body, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.UserID != 42 || msg.Type != TypeOrderPaid || msg.OrderID != 7 {
		t.Errorf("message = %+v", msg)
	}
	if msg.MessageID == "" {
		t.Error("message id missing")
	}
	if len(repo.inserted) != 0 {
		t.Errorf("successful publish parked in outbox: %v", repo.inserted)
	}
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	repo := &fakeOutboxRepo{}
	client := newTestClient(pub, repo, 2)

	client.Notify(context.Background(), 42, TypeOrderCreated, 7, nil)

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if len(repo.inserted) != 0 {
		t.Errorf("recovered publish parked in outbox")
	}
}

func TestNotifyParksInOutboxOnExhaustedRetries(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	repo := &fakeOutboxRepo{}
	client := newTestClient(pub, repo, 2)

	client.Notify(context.Background(), 42, TypeOrderCancelled, 7, nil)

	if len(pub.published) != 0 {
		t.Fatalf("published %d messages, want 0", len(pub.published))
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("outbox inserts = %d, want 1", len(repo.inserted))
	}

	parked := repo.inserted[0]
	if parked.ExchangeName != "notifications" || parked.RoutingKey != string(TypeOrderCancelled) {
		t.Errorf("parked message = %+v", parked)
	}
	if parked.MaxRetries != 5 {
		t.Errorf("parked max retries = %d, want 5", parked.MaxRetries)
	}
}
