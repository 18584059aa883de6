package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"servicehub/internal/domain"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; pragmas below are per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// NewRepositories wires every SQLite repository over db.
func NewRepositories(db *sql.DB) domain.Repositories {
	return domain.Repositories{
		Profiles:      NewProfileRepo(db),
		Listings:      NewListingRepo(db),
		Bookings:      NewBookingRepo(db),
		Conversations: NewConversationRepo(db),
		Messages:      NewMessageRepo(db),
		Reviews:       NewReviewRepo(db),
	}
}

// Migrate creates the marketplace schema. Statements are idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id                   TEXT PRIMARY KEY,
			email                TEXT UNIQUE NOT NULL,
			password_hash        TEXT NOT NULL,
			full_name            TEXT NOT NULL DEFAULT '',
			avatar_url           TEXT,
			user_type            TEXT NOT NULL DEFAULT 'customer' CHECK (user_type IN ('customer', 'provider')),
			phone                TEXT,
			business_name        TEXT,
			business_description TEXT,
			service_area         TEXT,
			years_experience     INTEGER,
			verified             BOOLEAN NOT NULL DEFAULT 0,
			created_at           DATETIME NOT NULL,
			updated_at           DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS services (
			id                 TEXT PRIMARY KEY,
			provider_id        TEXT NOT NULL REFERENCES profiles(id),
			title              TEXT NOT NULL,
			description        TEXT NOT NULL,
			category           TEXT NOT NULL,
			specific_service   TEXT NOT NULL DEFAULT '',
			pricing_type       TEXT NOT NULL DEFAULT 'hourly' CHECK (pricing_type IN ('hourly', 'fixed', 'custom')),
			pricing_amount     REAL,
			currency           TEXT NOT NULL DEFAULT 'USD',
			location_address   TEXT NOT NULL DEFAULT '',
			location_city      TEXT NOT NULL,
			location_state     TEXT NOT NULL,
			location_zip       TEXT NOT NULL DEFAULT '',
			service_radius     INTEGER NOT NULL DEFAULT 10,
			availability_days  TEXT NOT NULL DEFAULT '[]',
			availability_start TEXT NOT NULL DEFAULT '09:00',
			availability_end   TEXT NOT NULL DEFAULT '17:00',
			features           TEXT NOT NULL DEFAULT '[]',
			requirements       TEXT NOT NULL DEFAULT '',
			images             TEXT NOT NULL DEFAULT '[]',
			status             TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'inactive')),
			views              INTEGER NOT NULL DEFAULT 0,
			rating             REAL NOT NULL DEFAULT 0,
			review_count       INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL
		);`,
		// service_id is a plain reference so deleting a listing leaves its bookings intact.
		`CREATE TABLE IF NOT EXISTS bookings (
			id              TEXT PRIMARY KEY,
			service_id      TEXT NOT NULL,
			customer_id     TEXT NOT NULL REFERENCES profiles(id),
			provider_id     TEXT NOT NULL REFERENCES profiles(id),
			customer_name   TEXT NOT NULL,
			customer_phone  TEXT NOT NULL,
			customer_email  TEXT NOT NULL,
			service_address TEXT NOT NULL,
			service_details TEXT NOT NULL DEFAULT '',
			booking_date    TEXT NOT NULL,
			booking_time    TEXT NOT NULL,
			urgency         TEXT NOT NULL DEFAULT 'normal' CHECK (urgency IN ('normal', 'urgent', 'emergency')),
			status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'completed', 'cancelled')),
			total_amount    REAL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT PRIMARY KEY,
			customer_id     TEXT NOT NULL REFERENCES profiles(id),
			provider_id     TEXT NOT NULL REFERENCES profiles(id),
			service_id      TEXT,
			last_message    TEXT,
			last_message_at DATETIME,
			customer_unread INTEGER NOT NULL DEFAULT 0,
			provider_unread INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL,
			UNIQUE (customer_id, provider_id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT NOT NULL REFERENCES profiles(id),
			message         TEXT NOT NULL,
			client_id       TEXT,
			created_at      DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id          TEXT PRIMARY KEY,
			booking_id  TEXT UNIQUE NOT NULL,
			customer_id TEXT NOT NULL REFERENCES profiles(id),
			provider_id TEXT NOT NULL REFERENCES profiles(id),
			service_id  TEXT NOT NULL,
			rating      INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment     TEXT,
			created_at  DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_services_provider ON services(provider_id);`,
		`CREATE INDEX IF NOT EXISTS idx_services_status_category ON services(status, category);`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider ON bookings(provider_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_provider ON conversations(provider_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_service ON reviews(service_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_provider ON reviews(provider_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_customer ON reviews(customer_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// nullString maps empty strings to NULL for optional foreign references.
func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
