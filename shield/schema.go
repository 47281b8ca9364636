package shield

import "database/sql"

// Schema holds the rate_limits table and the default rules for the two
// public signup endpoints. Re-running it never overwrites edited rules.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES
    ('POST /api/waitlist', 10, 60, 1),
    ('POST /api/referrals', 10, 60, 1);
`

// Init creates the shield tables and default rules.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
