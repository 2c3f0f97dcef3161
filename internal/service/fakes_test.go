package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/mailtmpl"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/queue"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
)

const (
	testSiteURL = "https://example.com"
	testFrom    = "newsletter@example.com"
	testAdmin   = "owner@example.com"
)

func newTestRenderer(t *testing.T) *mailtmpl.Renderer {
	t.Helper()

	renderer, err := mailtmpl.NewRenderer(testSiteURL, "Example")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return renderer
}

func strPtr(v string) *string {
	return &v
}

// memorySubscriberRepo enforces the unique email rule like the real table.
type memorySubscriberRepo struct {
	mu        sync.Mutex
	rows      []*domain.Subscriber
	createErr error
	listErr   error
	listCalls int
}

var _ repository.SubscriberRepository = (*memorySubscriberRepo)(nil)

func (r *memorySubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, row := range r.rows {
		if row.Email == s.Email {
			return domain.ErrConflict
		}
	}

	s.ID = "sub-" + s.Email
	stored := *s
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *memorySubscriberRepo) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}

	active := make([]domain.Subscriber, 0, len(r.rows))
	for _, row := range r.rows {
		if row.IsActive {
			active = append(active, *row)
		}
	}
	return active, nil
}

func (r *memorySubscriberRepo) GetByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.UnsubscribeToken == token {
			found := *row
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memorySubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.Email == email {
			found := *row
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memorySubscriberRepo) DeactivateByToken(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.UnsubscribeToken == token {
			row.IsActive = false
			return row.Email, nil
		}
	}
	return "", domain.ErrNotFound
}

func (r *memorySubscriberRepo) Ping(ctx context.Context) error {
	return nil
}

func (r *memorySubscriberRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memorySubscriberRepo) add(subscribers ...domain.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range subscribers {
		s := subscribers[i]
		r.rows = append(r.rows, &s)
	}
}

type fakeProvider struct {
	mu     sync.Mutex
	sent   []domain.Email
	sendFn func(ctx context.Context, email domain.Email) (*provider.SendResult, error)
}

func (f *fakeProvider) Send(ctx context.Context, email domain.Email) (*provider.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, email)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, email)
	}
	return &provider.SendResult{StatusCode: 200, MessageID: "msg-" + email.To[0]}, nil
}

func (f *fakeProvider) calls() []domain.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Email(nil), f.sent...)
}

func (f *fakeProvider) recipients() []string {
	emails := f.calls()
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, strings.Join(e.To, ","))
	}
	sort.Strings(out)
	return out
}

type fakeAttemptRepo struct {
	mu            sync.Mutex
	batches       [][]domain.DeliveryAttempt
	createBatchFn func(ctx context.Context, attempts []domain.DeliveryAttempt) error
}

var _ repository.DeliveryAttemptRepository = (*fakeAttemptRepo)(nil)

func (f *fakeAttemptRepo) CreateBatch(ctx context.Context, attempts []domain.DeliveryAttempt) error {
	f.mu.Lock()
	f.batches = append(f.batches, attempts)
	f.mu.Unlock()

	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, attempts)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByCampaign(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error) {
	return nil, nil
}

func (f *fakeAttemptRepo) calls() [][]domain.DeliveryAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.DeliveryAttempt(nil), f.batches...)
}

type fakeContactRepo struct {
	createFn func(ctx context.Context, c *domain.ContactSubmission) error
}

func (f *fakeContactRepo) Create(ctx context.Context, c *domain.ContactSubmission) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	c.ID = "contact-1"
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.DeliveryResultMessage
	publishFn func(ctx context.Context, queueName string, msg queue.DeliveryResultMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DeliveryResultMessage) error {
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()

	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

func (f *fakePublisher) calls() []queue.DeliveryResultMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.DeliveryResultMessage(nil), f.published...)
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type recordedResults struct {
	slug     string
	attempts []domain.DeliveryAttempt
}

type fakeResultSink struct {
	mu      sync.Mutex
	records []recordedResults
}

func (f *fakeResultSink) Record(ctx context.Context, campaignSlug string, attempts []domain.DeliveryAttempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedResults{slug: campaignSlug, attempts: attempts})
}
