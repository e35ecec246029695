package sqlengine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id          BIGSERIAL PRIMARY KEY,
	first_name  TEXT NOT NULL,
	last_name   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	birth_year  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS %[2]s (
	id               BIGSERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	isbn             TEXT NOT NULL,
	publication_year INTEGER NOT NULL DEFAULT 0,
	total_copies     INTEGER NOT NULL CHECK (total_copies >= 1),
	available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
	author_id        BIGINT NOT NULL REFERENCES %[1]s (id)
);
CREATE TABLE IF NOT EXISTS %[3]s (
	id          BIGSERIAL PRIMARY KEY,
	book_id     BIGINT NOT NULL REFERENCES %[2]s (id),
	member_name TEXT NOT NULL,
	loan_date   TIMESTAMPTZ NOT NULL,
	due_date    TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_author_id_idx ON %[2]s (author_id);
CREATE INDEX IF NOT EXISTS %[3]s_book_id_idx ON %[3]s (book_id);
CREATE INDEX IF NOT EXISTS %[3]s_member_name_idx ON %[3]s (member_name);
CREATE INDEX IF NOT EXISTS %[3]s_active_idx ON %[3]s (book_id) WHERE returned_at IS NULL
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name  TEXT NOT NULL,
	last_name   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	birth_year  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS %[2]s (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL,
	isbn             TEXT NOT NULL,
	publication_year INTEGER NOT NULL DEFAULT 0,
	total_copies     INTEGER NOT NULL CHECK (total_copies >= 1),
	available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
	author_id        INTEGER NOT NULL REFERENCES %[1]s (id)
);
CREATE TABLE IF NOT EXISTS %[3]s (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id     INTEGER NOT NULL REFERENCES %[2]s (id),
	member_name TEXT NOT NULL,
	loan_date   TIMESTAMP NOT NULL,
	due_date    TIMESTAMP NOT NULL,
	returned_at TIMESTAMP NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_author_id_idx ON %[2]s (author_id);
CREATE INDEX IF NOT EXISTS %[3]s_book_id_idx ON %[3]s (book_id);
CREATE INDEX IF NOT EXISTS %[3]s_member_name_idx ON %[3]s (member_name);
CREATE INDEX IF NOT EXISTS %[3]s_active_idx ON %[3]s (book_id) WHERE returned_at IS NULL
`

// Migrate creates the tables and indexes if they do not exist yet.
func (s Store) Migrate(ctx context.Context) (err error) {
	ctx, observer := s.startOperation(ctx, operationMigrate)
	defer func() { observer.finish(err) }()

	schema := postgresSchema
	if s.dialectName == DialectSQLite {
		schema = sqliteSchema
	}

	schema = fmt.Sprintf(schema, s.tables.authors, s.tables.books, s.tables.loans)

	for _, statement := range strings.Split(schema, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}

		start := time.Now()

		if _, err = s.db.Exec(ctx, statement); err != nil {
			err = classifyError(err)
			s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, statement)
			return err
		}

		s.logQueryWithDuration(ctx, statement, operationMigrate, time.Since(start))
	}

	s.logOperation(ctx, operationMigrate, logAttrDialect, s.dialectName)

	return nil
}
