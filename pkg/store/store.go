// Package store is the relational persistence layer for the sync server.
// It knows nothing about CRDT merge semantics: every row is one immutable
// piece of evidence, and idempotence comes entirely from each table's
// primary key plus "INSERT ... ON CONFLICT DO NOTHING".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytes-zone/beeps/pkg/crdt"
	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
	_ "github.com/lib/pq"
)

// Store wraps a SQL connection pool. It is safe for concurrent use; the
// underlying *sql.DB manages its own connection pool.
type Store struct {
	db *sql.DB
}

// New wraps an already-configured *sql.DB. The caller is responsible for
// calling sql.Open and setting pool limits (see Configure).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Configure applies the pool-size ambient configuration the server's
// config layer reads from the environment.
func Configure(db *sql.DB, maxConnections int) {
	db.SetMaxOpenConns(maxConnections)
	db.SetMaxIdleConns(maxConnections)
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	owner_id UUID NOT NULL REFERENCES accounts(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS minutes_per_pings (
	document_id BIGINT NOT NULL REFERENCES documents(id),
	minutes_per_ping INTEGER NOT NULL,
	clock TIMESTAMPTZ NOT NULL,
	counter INTEGER NOT NULL,
	node_id INTEGER NOT NULL,
	PRIMARY KEY (document_id, clock, counter, node_id)
);

CREATE TABLE IF NOT EXISTS pings (
	document_id BIGINT NOT NULL REFERENCES documents(id),
	ping TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, ping)
);

CREATE TABLE IF NOT EXISTS tags (
	document_id BIGINT NOT NULL REFERENCES documents(id),
	ping TIMESTAMPTZ NOT NULL,
	tag TEXT,
	clock TIMESTAMPTZ NOT NULL,
	counter INTEGER NOT NULL,
	node_id INTEGER NOT NULL,
	PRIMARY KEY (document_id, ping, clock, counter, node_id)
);
`

// Init creates the schema if it does not already exist. Safe to call on
// every startup.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Account is one row from accounts.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
}

// CreateAccount inserts a new account row. Callers are expected to have
// already checked for an existing email within the same transaction-ish
// flow (see the register handler); this method does not itself guard
// against duplicates beyond the UNIQUE constraint.
func (s *Store) CreateAccount(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// GetAccountByEmail looks up an account. It returns sql.ErrNoRows,
// unwrapped, when no account has that email, so callers can use
// errors.Is(err, sql.ErrNoRows) directly.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// DocumentSummary is one row from documents, as returned by ListDocuments.
type DocumentSummary struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateDocument inserts a new document owned by ownerID and returns its
// id.
func (s *Store) CreateDocument(ctx context.Context, ownerID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO documents (owner_id) VALUES ($1) RETURNING id`,
		ownerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating document: %w", err)
	}
	return id, nil
}

// ListDocuments returns every document owned by ownerID.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at FROM documents WHERE owner_id = $1 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return out, nil
}

// DocumentOwnedBy reports whether documentID exists and is owned by
// ownerEmail. It deliberately answers both "does it exist" and "is it
// owned by this account" in one query, so the push/pull handlers can
// collapse "not found" and "not yours" into the same 404 without a
// separate existence check that would leak which case applies.
func (s *Store) DocumentOwnedBy(ctx context.Context, documentID int64, ownerEmail string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM documents
			JOIN accounts ON accounts.id = documents.owner_id
			WHERE accounts.email = $1 AND documents.id = $2
		)`,
		ownerEmail, documentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking document ownership: %w", err)
	}
	return exists, nil
}

// PushParts inserts every part of a document's split state into its
// table, in one transaction, with ON CONFLICT DO NOTHING making the push
// idempotent at the row level regardless of how many times the same part
// is pushed.
func (s *Store) PushParts(ctx context.Context, documentID int64, parts func(func(document.Part) bool)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning push transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for part := range parts {
		switch part.Kind() {
		case document.PartMinutesPerPing:
			lww := part.MinutesPerPing()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO minutes_per_pings (document_id, minutes_per_ping, clock, counter, node_id)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT DO NOTHING`,
				documentID, lww.Value(), lww.Clock().Timestamp(), lww.Clock().Counter(), lww.Clock().Node(),
			)
		case document.PartPing:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO pings (document_id, ping) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				documentID, part.Ping(),
			)
		case document.PartTag:
			lww := part.Tag()
			var tag sql.NullString
			if v, ok := lww.Value().Get(); ok {
				tag = sql.NullString{String: v, Valid: true}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO tags (document_id, ping, tag, clock, counter, node_id)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT DO NOTHING`,
				documentID, part.TagPing(), tag, lww.Clock().Timestamp(), lww.Clock().Counter(), lww.Clock().Node(),
			)
		}
		if err != nil {
			return fmt.Errorf("inserting document part: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE documents SET updated_at = now() WHERE id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("touching document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing push transaction: %w", err)
	}
	return nil
}

// PullDocument rebuilds a Document from every row recorded for
// documentID. It is a pure projection: the store never merges, it only
// reconstructs the CRDT state the rows already represent.
func (s *Store) PullDocument(ctx context.Context, documentID int64) (document.Document, error) {
	doc := document.New()

	minutesRows, err := s.db.QueryContext(ctx,
		`SELECT minutes_per_ping, clock, counter, node_id FROM minutes_per_pings WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return document.Document{}, fmt.Errorf("pulling minutes_per_pings: %w", err)
	}
	for minutesRows.Next() {
		var (
			value   uint16
			clock   time.Time
			counter uint16
			node    uint16
		)
		if err := minutesRows.Scan(&value, &clock, &counter, &node); err != nil {
			minutesRows.Close()
			return document.Document{}, fmt.Errorf("scanning minutes_per_pings row: %w", err)
		}
		doc = doc.MergePart(document.MinutesPerPingPart(
			crdt.NewLWW(value, hlc.NewAt(nodeid.NodeId(node), clock, counter)),
		))
	}
	if err := minutesRows.Err(); err != nil {
		minutesRows.Close()
		return document.Document{}, fmt.Errorf("pulling minutes_per_pings: %w", err)
	}
	minutesRows.Close()

	pingRows, err := s.db.QueryContext(ctx,
		`SELECT ping FROM pings WHERE document_id = $1`, documentID,
	)
	if err != nil {
		return document.Document{}, fmt.Errorf("pulling pings: %w", err)
	}
	for pingRows.Next() {
		var ping time.Time
		if err := pingRows.Scan(&ping); err != nil {
			pingRows.Close()
			return document.Document{}, fmt.Errorf("scanning ping row: %w", err)
		}
		doc = doc.MergePart(document.PingPart(ping))
	}
	if err := pingRows.Err(); err != nil {
		pingRows.Close()
		return document.Document{}, fmt.Errorf("pulling pings: %w", err)
	}
	pingRows.Close()

	tagRows, err := s.db.QueryContext(ctx,
		`SELECT ping, tag, clock, counter, node_id FROM tags WHERE document_id = $1`, documentID,
	)
	if err != nil {
		return document.Document{}, fmt.Errorf("pulling tags: %w", err)
	}
	for tagRows.Next() {
		var (
			ping    time.Time
			tag     sql.NullString
			clock   time.Time
			counter uint16
			node    uint16
		)
		if err := tagRows.Scan(&ping, &tag, &clock, &counter, &node); err != nil {
			tagRows.Close()
			return document.Document{}, fmt.Errorf("scanning tag row: %w", err)
		}
		optional := crdt.None()
		if tag.Valid {
			optional = crdt.Some(tag.String)
		}
		doc = doc.MergePart(document.TagPart(ping, crdt.NewLWW(optional, hlc.NewAt(nodeid.NodeId(node), clock, counter))))
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return document.Document{}, fmt.Errorf("pulling tags: %w", err)
	}
	tagRows.Close()

	return doc, nil
}
