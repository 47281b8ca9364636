// Package store persists waitlist signups, referrals, status checks and the
// prototype app's JSON resources in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/buildboard/dbopen"
	"github.com/hazyhaar/buildboard/idgen"
)

// TimeLayout is the created_at format: RFC 3339, UTC, milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// MaxStatusChecks caps ListStatusChecks.
const MaxStatusChecks = 1000

var (
	ErrNotFound        = errors.New("store: not found")
	ErrUnknownKind     = errors.New("store: unknown resource kind")
	ErrInvalidDocument = errors.New("store: document must be a JSON object")
)

// Store wraps the database handle.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides record ids. Default: idgen.ObjectID.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Store) { s.newID = g } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New wraps db. The schema must already be migrated (see Migrations).
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, newID: idgen.Default, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens the database at path, applies Migrations and returns a Store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithMigrations(Migrations...))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) stamp() string { return s.now().UTC().Format(TimeLayout) }

// Attribution is the marketing context attached to a signup.
type Attribution struct {
	SourceURL   *string `json:"source_url"`
	UTMSource   *string `json:"utm_source"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMMedium   *string `json:"utm_medium"`
}

// WaitlistEntry is one waitlist row.
type WaitlistEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Attribution
	CreatedAt string `json:"created_at"`
}

// Referral is one referral row.
type Referral struct {
	ID              string  `json:"id"`
	ReferrerName    string  `json:"referrer_name"`
	ReferrerEmail   string  `json:"referrer_email"`
	ReferralType    string  `json:"referral_type"`
	ReferralName    string  `json:"referral_name"`
	ReferralContact *string `json:"referral_contact"`
	Notes           *string `json:"notes"`
	Attribution
	CreatedAt string `json:"created_at"`
}

// StatusCheck is a client heartbeat.
type StatusCheck struct {
	ID         string `json:"id"`
	ClientName string `json:"client_name"`
	Timestamp  string `json:"timestamp"`
}

// CreateWaitlist inserts e, filling ID and CreatedAt. Repeated emails are
// stored as separate rows.
func (s *Store) CreateWaitlist(ctx context.Context, e WaitlistEntry) (WaitlistEntry, error) {
	e.ID = s.newID()
	e.CreatedAt = s.stamp()
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO waitlist (id, name, email, role, source_url, utm_source, utm_campaign, utm_medium, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Email, e.Role, e.SourceURL, e.UTMSource, e.UTMCampaign, e.UTMMedium, e.CreatedAt)
	if err != nil {
		return WaitlistEntry{}, fmt.Errorf("store: insert waitlist: %w", err)
	}
	return e, nil
}

// ListWaitlist returns the newest entries first.
func (s *Store) ListWaitlist(ctx context.Context, limit, offset int) ([]WaitlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, role, source_url, utm_source, utm_campaign, utm_medium, created_at
		 FROM waitlist ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list waitlist: %w", err)
	}
	defer rows.Close()

	out := []WaitlistEntry{}
	for rows.Next() {
		var e WaitlistEntry
		var a nullAttribution
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &a.src, &a.utmSource, &a.utmCampaign, &a.utmMedium, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan waitlist: %w", err)
		}
		e.Attribution = a.value()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountWaitlistByRole returns the number of signups per role.
func (s *Store) CountWaitlistByRole(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM waitlist GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("store: count waitlist: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		out[role] = n
	}
	return out, rows.Err()
}

// CreateReferral inserts r, filling ID and CreatedAt.
func (s *Store) CreateReferral(ctx context.Context, r Referral) (Referral, error) {
	r.ID = s.newID()
	r.CreatedAt = s.stamp()
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO referrals (id, referrer_name, referrer_email, referral_type, referral_name,
		   referral_contact, notes, source_url, utm_source, utm_campaign, utm_medium, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReferrerName, r.ReferrerEmail, r.ReferralType, r.ReferralName,
		r.ReferralContact, r.Notes, r.SourceURL, r.UTMSource, r.UTMCampaign, r.UTMMedium, r.CreatedAt)
	if err != nil {
		return Referral{}, fmt.Errorf("store: insert referral: %w", err)
	}
	return r, nil
}

// ListReferrals returns the newest referrals first.
func (s *Store) ListReferrals(ctx context.Context, limit, offset int) ([]Referral, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, referrer_name, referrer_email, referral_type, referral_name,
		   referral_contact, notes, source_url, utm_source, utm_campaign, utm_medium, created_at
		 FROM referrals ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list referrals: %w", err)
	}
	defer rows.Close()

	out := []Referral{}
	for rows.Next() {
		var r Referral
		var contact, notes sql.NullString
		var a nullAttribution
		if err := rows.Scan(&r.ID, &r.ReferrerName, &r.ReferrerEmail, &r.ReferralType, &r.ReferralName,
			&contact, &notes, &a.src, &a.utmSource, &a.utmCampaign, &a.utmMedium, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan referral: %w", err)
		}
		r.ReferralContact = strPtr(contact)
		r.Notes = strPtr(notes)
		r.Attribution = a.value()
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateStatusCheck records a heartbeat from clientName.
func (s *Store) CreateStatusCheck(ctx context.Context, clientName string) (StatusCheck, error) {
	c := StatusCheck{ID: idgen.UUIDv7()(), ClientName: clientName, Timestamp: s.stamp()}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO status_checks (id, client_name, timestamp) VALUES (?, ?, ?)`,
		c.ID, c.ClientName, c.Timestamp)
	if err != nil {
		return StatusCheck{}, fmt.Errorf("store: insert status check: %w", err)
	}
	return c, nil
}

// ListStatusChecks returns at most MaxStatusChecks heartbeats, oldest first.
func (s *Store) ListStatusChecks(ctx context.Context) ([]StatusCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_name, timestamp FROM status_checks ORDER BY timestamp, id LIMIT ?`, MaxStatusChecks)
	if err != nil {
		return nil, fmt.Errorf("store: list status checks: %w", err)
	}
	defer rows.Close()

	out := []StatusCheck{}
	for rows.Next() {
		var c StatusCheck
		if err := rows.Scan(&c.ID, &c.ClientName, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan status check: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type nullAttribution struct {
	src, utmSource, utmCampaign, utmMedium sql.NullString
}

func (n nullAttribution) value() Attribution {
	return Attribution{
		SourceURL:   strPtr(n.src),
		UTMSource:   strPtr(n.utmSource),
		UTMCampaign: strPtr(n.utmCampaign),
		UTMMedium:   strPtr(n.utmMedium),
	}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
