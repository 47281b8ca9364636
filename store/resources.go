package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/buildboard/dbopen"
)

// Kinds lists the prototype resources. Each has its own table.
var Kinds = []string{"builds", "parts", "shops", "leads", "invoices"}

// Document is a stored JSON object plus its bookkeeping fields. It
// marshals flat: the object's own keys alongside id, created_at and
// updated_at, which always win over same-named keys in Data.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt string
	UpdatedAt string
}

func (d Document) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &m); err != nil {
			return nil, fmt.Errorf("store: document %s: %w", d.ID, err)
		}
	}
	for k, v := range map[string]string{"id": d.ID, "created_at": d.CreatedAt, "updated_at": d.UpdatedAt} {
		b, _ := json.Marshal(v)
		m[k] = b
	}
	return json.Marshal(m)
}

// Resources is CRUD over one kind.
type Resources struct {
	s     *Store
	table string
}

// Resources returns the collection for kind.
func (s *Store) Resources(kind string) (*Resources, error) {
	for _, k := range Kinds {
		if k == kind {
			return &Resources{s: s, table: k}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Kind returns the collection name.
func (r *Resources) Kind() string { return r.table }

// Create stores data under a new id. Bookkeeping keys in data are dropped.
func (r *Resources) Create(ctx context.Context, data json.RawMessage) (Document, error) {
	clean, err := normalize(data)
	if err != nil {
		return Document{}, err
	}
	now := r.s.stamp()
	d := Document{ID: r.s.newID(), Data: clean, CreatedAt: now, UpdatedAt: now}
	_, err = dbopen.Exec(ctx, r.s.db,
		fmt.Sprintf(`INSERT INTO %s (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`, r.table),
		d.ID, string(d.Data), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("store: insert %s: %w", r.table, err)
	}
	return d, nil
}

// Get returns the document id, or ErrNotFound.
func (r *Resources) Get(ctx context.Context, id string) (Document, error) {
	var d Document
	var doc string
	err := r.s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM %s WHERE id = ?`, r.table), id).
		Scan(&d.ID, &doc, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get %s: %w", r.table, err)
	}
	d.Data = json.RawMessage(doc)
	return d, nil
}

// List returns documents newest first.
func (r *Resources) List(ctx context.Context, limit, offset int) ([]Document, error) {
	rows, err := r.s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, r.table),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", r.table, err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var d Document
		var doc string
		if err := rows.Scan(&d.ID, &doc, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", r.table, err)
		}
		d.Data = json.RawMessage(doc)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update replaces the body of document id.
func (r *Resources) Update(ctx context.Context, id string, data json.RawMessage) (Document, error) {
	clean, err := normalize(data)
	if err != nil {
		return Document{}, err
	}
	var d Document
	err = dbopen.RunTx(ctx, r.s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE id = ?`, r.table),
			string(clean), r.s.stamp(), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		var doc string
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM %s WHERE id = ?`, r.table), id).
			Scan(&d.ID, &doc, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return err
		}
		d.Data = json.RawMessage(doc)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: update %s: %w", r.table, err)
	}
	return d, nil
}

// Delete removes document id.
func (r *Resources) Delete(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, r.s.db, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table), id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", r.table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalize(data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidDocument
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	delete(m, "id")
	delete(m, "created_at")
	delete(m, "updated_at")
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return out, nil
}
