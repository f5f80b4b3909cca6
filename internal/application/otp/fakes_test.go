package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-otp-service/internal/domain"
)

// memStore is an in-memory Store with the same conditional-update contract as DynamoDB.
type memStore struct {
	mu        sync.Mutex
	records   map[string][]domain.OtpRecord
	reads     int
	conflicts int
	consumed  int
	// onRead runs after each QueryLatest, outside the lock, with the 1-based read count.
	onRead func(n int)
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]domain.OtpRecord)}
}

func (m *memStore) Put(_ context.Context, rec *domain.OtpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records[rec.UserID] {
		if r.CreatedAt.Equal(rec.CreatedAt) {
			return errors.New("duplicate key")
		}
	}
	m.records[rec.UserID] = append(m.records[rec.UserID], *rec)
	sort.Slice(m.records[rec.UserID], func(i, j int) bool {
		return m.records[rec.UserID][i].CreatedAt.Before(m.records[rec.UserID][j].CreatedAt)
	})
	return nil
}

func (m *memStore) QueryLatest(_ context.Context, userID string) (*domain.OtpRecord, error) {
	m.mu.Lock()
	m.reads++
	n := m.reads
	recs := m.records[userID]
	var out *domain.OtpRecord
	if len(recs) > 0 {
		cp := recs[len(recs)-1]
		out = &cp
	}
	hook := m.onRead
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if out == nil {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *memStore) UpdateAttempts(_ context.Context, userID string, createdAt time.Time, expected, newValue int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records[userID] {
		if r.CreatedAt.Equal(createdAt) {
			if r.AttemptsRemaining != expected {
				m.conflicts++
				return domain.ErrConcurrentModification
			}
			m.records[userID][i].AttemptsRemaining = newValue
			return nil
		}
	}
	m.conflicts++
	return domain.ErrConcurrentModification
}

func (m *memStore) Consume(_ context.Context, userID string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[userID]
	for i, r := range recs {
		if r.CreatedAt.Equal(createdAt) {
			m.records[userID] = append(recs[:i], recs[i+1:]...)
			m.consumed++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) all(userID string) []domain.OtpRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OtpRecord(nil), m.records[userID]...)
}

func (m *memStore) latest(userID string) (domain.OtpRecord, bool) {
	recs := m.all(userID)
	if len(recs) == 0 {
		return domain.OtpRecord{}, false
	}
	return recs[len(recs)-1], true
}

// prefixSealer is a reversible stand-in for KMS.
type prefixSealer struct {
	sealErr   error
	unsealErr error
}

func (p *prefixSealer) Seal(_ context.Context, c string) (string, error) {
	if p.sealErr != nil {
		return "", p.sealErr
	}
	return "sealed:" + c, nil
}

func (p *prefixSealer) Unseal(_ context.Context, s string) (string, error) {
	if p.unsealErr != nil {
		return "", p.unsealErr
	}
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("malformed")
	}
	return strings.TrimPrefix(s, "sealed:"), nil
}

type sentMessage struct {
	Channel   domain.Channel
	Recipient string
	Subject   string
	Message   string
}

// outbox records deliveries.
type outbox struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (o *outbox) Send(_ context.Context, ch domain.Channel, recipient, subject, message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentMessage{ch, recipient, subject, message})
	return nil
}

// fixedCodes hands out the given codes in order.
type fixedCodes struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (f *fixedCodes) Generate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	c := f.codes[0]
	f.codes = f.codes[1:]
	return c, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
