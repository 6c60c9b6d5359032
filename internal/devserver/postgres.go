package devserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to dbURL and fails fast if the database is
// unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) AppendEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = p.now()
	}
	payload, err := marshalObject(ev.Payload)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO cx_events (id, organize_id, name, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.OrganizeID, ev.Name, payload, ev.ReceivedAt)
	return err
}

func (p *PostgresStore) Identify(ctx context.Context, org string, in IdentifyInput) (Customer, error) {
	var out Customer
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		c, err := p.identifyTx(ctx, tx, org, in)
		if err != nil {
			return err
		}
		out = *c
		return nil
	})
	return out, err
}

// identifyTx selects, merges and saves a customer. Identify calls for the
// same organization are serialized with an advisory lock so two calls can't
// both create the same customer.
func (p *PostgresStore) identifyTx(ctx context.Context, tx pgx.Tx, org string, in IdentifyInput) (*Customer, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, org); err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}

	customers, err := queryCustomers(ctx, tx, org)
	if err != nil {
		return nil, err
	}

	c := selectCustomer(customers, in)
	created := c == nil
	if created {
		c = &Customer{ID: uuid.NewString()}
	}
	applyIdentify(c, in, p.now())

	attrs, err := marshalObject(c.Attributes)
	if err != nil {
		return nil, err
	}
	customs, err := json.Marshal(c.Customs)
	if err != nil {
		return nil, err
	}
	if c.Customs == nil {
		customs = []byte("{}")
	}
	cookies := c.Cookies
	if cookies == nil {
		cookies = []string{}
	}

	if created {
		_, err = tx.Exec(ctx, `
			INSERT INTO cx_customers (id, organize_id, attributes, customs, cookies, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, org, attrs, customs, cookies, c.CreatedAt, c.UpdatedAt)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE cx_customers
			SET attributes = $2, customs = $3, cookies = $4, updated_at = $5
			WHERE id = $1
		`, c.ID, attrs, customs, cookies, c.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return c, nil
}

func (p *PostgresStore) OpenTicket(ctx context.Context, org string, in TicketInput) (Ticket, error) {
	var t Ticket
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		c, err := p.identifyTx(ctx, tx, org, in.Identify)
		if err != nil {
			return err
		}
		fields, err := marshalObject(in.Fields)
		if err != nil {
			return err
		}
		lead, err := marshalNullable(in.Lead)
		if err != nil {
			return err
		}
		var customs []byte
		if len(in.Customs) > 0 {
			if customs, err = json.Marshal(in.Customs); err != nil {
				return err
			}
		}

		t = Ticket{
			ID:         uuid.NewString(),
			CustomerID: c.ID,
			Fields:     in.Fields,
			Lead:       in.Lead,
			Customs:    in.Customs,
			CreatedAt:  p.now(),
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO cx_tickets (id, organize_id, customer_id, fields, lead, customs, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, org, t.CustomerID, fields, lead, customs, t.CreatedAt)
		return err
	})
	return t, err
}

func (p *PostgresStore) CreateRecords(ctx context.Context, org, object string, records []map[string]any) ([]CreatedRecord, error) {
	out := make([]CreatedRecord, 0, len(records))
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		now := p.now()
		for _, fields := range records {
			data, err := marshalObject(fields)
			if err != nil {
				return err
			}
			rec := CreatedRecord{ID: uuid.NewString(), ReferenceID: referenceID(fields)}
			batch.Queue(`
				INSERT INTO cx_records (id, organize_id, object_name, reference_id, fields, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, rec.ID, org, object, rec.ReferenceID, data, now)
			out = append(out, rec)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Events(ctx context.Context, org string) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, organize_id, name, payload, received_at
		FROM cx_events
		WHERE organize_id = $1
		ORDER BY seq
	`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.OrganizeID, &ev.Name, &payload, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Customers(ctx context.Context, org string) ([]Customer, error) {
	customers, err := queryCustomers(ctx, p.pool, org)
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, *c)
	}
	return out, nil
}

func (p *PostgresStore) Customer(ctx context.Context, org, id string) (Customer, error) {
	row := p.pool.QueryRow(ctx, customerColumns+` WHERE organize_id = $1 AND id = $2`, org, id)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}
	return *c, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const customerColumns = `
	SELECT id, attributes, customs, cookies, created_at, updated_at
	FROM cx_customers`

func queryCustomers(ctx context.Context, q querier, org string) ([]*Customer, error) {
	rows, err := q.Query(ctx, customerColumns+` WHERE organize_id = $1 ORDER BY seq`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c              Customer
		attrs, customs []byte
	)
	if err := row.Scan(&c.ID, &attrs, &customs, &c.Cookies, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attrs, &c.Attributes); err != nil {
		return nil, fmt.Errorf("decode customer %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(customs, &c.Customs); err != nil {
		return nil, fmt.Errorf("decode customer %s: %w", c.ID, err)
	}
	if len(c.Customs) == 0 {
		c.Customs = nil
	}
	if len(c.Cookies) == 0 {
		c.Cookies = nil
	}
	return &c, nil
}

func marshalObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
