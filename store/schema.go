package store

// Migrations are applied in order through dbopen.WithMigrations.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS waitlist (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    email        TEXT NOT NULL,
    role         TEXT NOT NULL,
    source_url   TEXT,
    utm_source   TEXT,
    utm_campaign TEXT,
    utm_medium   TEXT,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_waitlist_created ON waitlist(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_waitlist_role ON waitlist(role);

CREATE TABLE IF NOT EXISTS referrals (
    id               TEXT PRIMARY KEY,
    referrer_name    TEXT NOT NULL,
    referrer_email   TEXT NOT NULL,
    referral_type    TEXT NOT NULL CHECK(referral_type IN ('Shop','Builder')),
    referral_name    TEXT NOT NULL,
    referral_contact TEXT,
    notes            TEXT,
    source_url       TEXT,
    utm_source       TEXT,
    utm_campaign     TEXT,
    utm_medium       TEXT,
    created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_referrals_created ON referrals(created_at DESC);

CREATE TABLE IF NOT EXISTS status_checks (
    id          TEXT PRIMARY KEY,
    client_name TEXT NOT NULL,
    timestamp   TEXT NOT NULL
);`,

	`CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS parts (
    id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS shops (
    id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS leads (
    id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY, doc TEXT NOT NULL, created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);`,
}
