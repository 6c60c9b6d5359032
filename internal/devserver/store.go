package devserver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists everything the dev backend receives. All methods are
// scoped to an organization.
type Store interface {
	AppendEvent(ctx context.Context, ev Event) error
	Identify(ctx context.Context, org string, in IdentifyInput) (Customer, error)
	OpenTicket(ctx context.Context, org string, in TicketInput) (Ticket, error)
	CreateRecords(ctx context.Context, org, object string, records []map[string]any) ([]CreatedRecord, error)
	Events(ctx context.Context, org string) ([]Event, error)
	Customers(ctx context.Context, org string) ([]Customer, error)
	Customer(ctx context.Context, org, id string) (Customer, error)
	Ping(ctx context.Context) error
	Close()
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string][]Event
	customers map[string][]*Customer
	tickets   map[string][]Ticket
	records   map[string][]StoredRecord
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string][]Event),
		customers: make(map[string][]*Customer),
		tickets:   make(map[string][]Ticket),
		records:   make(map[string][]StoredRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = s.now()
	}
	s.events[ev.OrganizeID] = append(s.events[ev.OrganizeID], ev)
	return nil
}

func (s *MemoryStore) Identify(_ context.Context, org string, in IdentifyInput) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identifyLocked(org, in).clone(), nil
}

func (s *MemoryStore) identifyLocked(org string, in IdentifyInput) *Customer {
	c := selectCustomer(s.customers[org], in)
	if c == nil {
		c = &Customer{ID: uuid.NewString()}
		s.customers[org] = append(s.customers[org], c)
	}
	applyIdentify(c, in, s.now())
	return c
}

func (s *MemoryStore) OpenTicket(_ context.Context, org string, in TicketInput) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.identifyLocked(org, in.Identify)
	t := Ticket{
		ID:         uuid.NewString(),
		CustomerID: c.ID,
		Fields:     in.Fields,
		Lead:       in.Lead,
		Customs:    in.Customs,
		CreatedAt:  s.now(),
	}
	s.tickets[org] = append(s.tickets[org], t)
	return t, nil
}

// Tickets returns the tickets opened for org.
func (s *MemoryStore) Tickets(org string) []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Ticket(nil), s.tickets[org]...)
}

func (s *MemoryStore) CreateRecords(_ context.Context, org, object string, records []map[string]any) ([]CreatedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CreatedRecord, 0, len(records))
	for _, fields := range records {
		rec := StoredRecord{
			ID:          uuid.NewString(),
			ObjectName:  object,
			ReferenceID: referenceID(fields),
			Fields:      fields,
			CreatedAt:   s.now(),
		}
		s.records[org] = append(s.records[org], rec)
		out = append(out, CreatedRecord{ID: rec.ID, ReferenceID: rec.ReferenceID})
	}
	return out, nil
}

func (s *MemoryStore) Events(_ context.Context, org string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events[org]...), nil
}

func (s *MemoryStore) Customers(_ context.Context, org string) ([]Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Customer, 0, len(s.customers[org]))
	for _, c := range s.customers[org] {
		out = append(out, c.clone())
	}
	return out, nil
}

func (s *MemoryStore) Customer(_ context.Context, org, id string) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers[org] {
		if c.ID == id {
			return c.clone(), nil
		}
	}
	return Customer{}, ErrNotFound
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

// referenceID extracts attributes.referenceId from a composite record.
func referenceID(fields map[string]any) string {
	attrs, ok := fields["attributes"].(map[string]any)
	if !ok {
		return ""
	}
	ref, _ := attrs["referenceId"].(string)
	return ref
}
