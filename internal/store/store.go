// Package store keeps participant records in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/NYUCCL/psiturk/internal/model"

	_ "modernc.org/sqlite"
)

var tableRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements model.ParticipantStore
type Store struct {
	db    *sql.DB
	table string
}

var _ model.ParticipantStore = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the participant
// table exists.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if !tableRx.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			uniqueid VARCHAR(128) PRIMARY KEY,
			assignmentid VARCHAR(128) NOT NULL,
			workerid VARCHAR(128) NOT NULL,
			hitid VARCHAR(128) NOT NULL,
			ipaddress VARCHAR(128),
			browser VARCHAR(128),
			platform VARCHAR(128),
			language VARCHAR(128),
			cond INTEGER,
			counterbalance INTEGER,
			codeversion VARCHAR(128),
			beginhit TEXT,
			beginexp TEXT DEFAULT NULL,
			endhit TEXT DEFAULT NULL,
			status INTEGER DEFAULT 1,
			debriefed BOOLEAN,
			datastring TEXT
		)`, table),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}
	return &Store{db: db, table: table}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the participant identified by uniqueID on success,
// model.ErrNotFound when it does not exist, error otherwise.
func (s *Store) Get(ctx context.Context, uniqueID string) (model.Participant, error) {
	var p model.Participant
	var beginHit string
	var beginExp, endHit sql.NullString
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT uniqueid, assignmentid, workerid, hitid,
			COALESCE(ipaddress, ''), COALESCE(browser, ''), COALESCE(platform, ''), COALESCE(language, ''),
			COALESCE(cond, 0), COALESCE(counterbalance, 0), COALESCE(codeversion, ''),
			COALESCE(beginhit, ''), beginexp, endhit,
			COALESCE(status, 1), COALESCE(debriefed, false), COALESCE(datastring, '')
		FROM %s WHERE uniqueid=?`, s.table), uniqueID,
	)
	err := row.Scan(
		&p.UniqueID,
		&p.AssignmentID,
		&p.WorkerID,
		&p.HitID,
		&p.IPAddress,
		&p.Browser,
		&p.Platform,
		&p.Language,
		&p.Cond,
		&p.Counterbalance,
		&p.CodeVersion,
		&beginHit,
		&beginExp,
		&endHit,
		&p.Status,
		&p.Debriefed,
		&p.Datastring,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Participant{}, fmt.Errorf("participant %s: %w", uniqueID, model.ErrNotFound)
	case err != nil:
		return model.Participant{}, fmt.Errorf("executing sql query failed: %w", err)
	}

	if p.BeginHit, err = parseTime(beginHit); err != nil {
		return model.Participant{}, fmt.Errorf("parsing beginhit: %w", err)
	}
	if p.BeginExp, err = parseNullTime(beginExp); err != nil {
		return model.Participant{}, fmt.Errorf("parsing beginexp: %w", err)
	}
	if p.EndHit, err = parseNullTime(endHit); err != nil {
		return model.Participant{}, fmt.Errorf("parsing endhit: %w", err)
	}
	return p, nil
}

// Put inserts the participant or replaces the record with the same uniqueid.
func (s *Store) Put(ctx context.Context, p model.Participant) error {
	if p.UniqueID == "" {
		return errors.New("participant without uniqueid")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(ctx context.Context, uniqueID string) {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("uniqueid", uniqueID))
		}
	}(ctx, p.UniqueID)

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (uniqueid, assignmentid, workerid, hitid, ipaddress, browser, platform, language,
			cond, counterbalance, codeversion, beginhit, beginexp, endhit, status, debriefed, datastring)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(uniqueid) DO UPDATE SET
			assignmentid=excluded.assignmentid,
			workerid=excluded.workerid,
			hitid=excluded.hitid,
			ipaddress=excluded.ipaddress,
			browser=excluded.browser,
			platform=excluded.platform,
			language=excluded.language,
			cond=excluded.cond,
			counterbalance=excluded.counterbalance,
			codeversion=excluded.codeversion,
			beginhit=excluded.beginhit,
			beginexp=excluded.beginexp,
			endhit=excluded.endhit,
			status=excluded.status,
			debriefed=excluded.debriefed,
			datastring=excluded.datastring;`, s.table),
		p.UniqueID, p.AssignmentID, p.WorkerID, p.HitID, p.IPAddress, p.Browser, p.Platform, p.Language,
		p.Cond, p.Counterbalance, p.CodeVersion, formatTime(p.BeginHit), formatNullTime(p.BeginExp), formatNullTime(p.EndHit),
		p.Status, p.Debriefed, p.Datastring,
	)
	if err != nil {
		return fmt.Errorf("executing sql upsert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
