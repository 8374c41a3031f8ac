// Package sqlstore persists trips and tasks through database/sql. SQLite is
// the local default; Postgres is used for shared deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	owner TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	pinned BOOLEAN NOT NULL DEFAULT FALSE,
	outline TEXT NOT NULL DEFAULT '[]',
	notes TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (owner, id)
);

CREATE TABLE IF NOT EXISTS tasks (
	owner TEXT NOT NULL,
	id BIGINT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	deadline TEXT,
	done BOOLEAN NOT NULL DEFAULT FALSE,
	group_id TEXT,
	link_note TEXT,
	PRIMARY KEY (owner, id)
);

CREATE INDEX IF NOT EXISTS tasks_group_idx ON tasks (owner, group_id);
`

// Store is a SQL-backed store.Store.
type Store struct {
	db     *sql.DB
	driver string
}

var _ store.Store = (*Store)(nil)

// Open connects with the given driver and migrates the schema. For SQLite
// the dsn is a file path; a leading ~ expands to the home directory.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if strings.HasPrefix(dsn, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			dsn = filepath.Join(home, dsn[1:])
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, err
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One connection keeps :memory: databases alive and serialises writers.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTrips(ctx context.Context, owner string) ([]model.Trip, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, color, start_date, end_date, pinned, outline, notes
		FROM trips WHERE owner = ? ORDER BY start_date, id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var (
			t                     model.Trip
			start, end            string
			outlineJSON, notesRaw string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &start, &end, &t.Pinned, &outlineJSON, &notesRaw); err != nil {
			return nil, err
		}
		if t.Start, err = model.ParseDate(start); err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.ID, err)
		}
		if t.End, err = model.ParseDate(end); err != nil {
			return nil, fmt.Errorf("trip %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(outlineJSON), &t.Outline); err != nil {
			return nil, fmt.Errorf("trip %s outline: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(notesRaw), &t.MilestoneNotes); err != nil {
			return nil, fmt.Errorf("trip %s notes: %w", t.ID, err)
		}
		t.Owner = owner
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Store) ListTasks(ctx context.Context, owner string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, content, category, deadline, done, group_id, link_note
		FROM tasks WHERE owner = ? ORDER BY id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var (
			t                         model.Task
			category                  string
			deadline, group, linkNote sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Content, &category, &deadline, &t.Done, &group, &linkNote); err != nil {
			return nil, err
		}
		t.Category = model.Category(category)
		if deadline.Valid && deadline.String != "" {
			d, err := model.ParseDate(deadline.String)
			if err != nil {
				return nil, fmt.Errorf("task %d: %w", t.ID, err)
			}
			t.Deadline = &d
		}
		if group.Valid && group.String != "" {
			t.Link = &model.LinkedInfo{GroupID: group.String, Note: linkNote.String}
		}
		t.Owner = owner
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpsertTrip(ctx context.Context, trip model.Trip) error {
	outline, notes, err := encodeContent(trip.Outline, trip.MilestoneNotes)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `
		INSERT INTO trips (owner, id, name, color, start_date, end_date, pinned, outline, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, id) DO UPDATE SET
			name = excluded.name, color = excluded.color,
			start_date = excluded.start_date, end_date = excluded.end_date,
			pinned = excluded.pinned, outline = excluded.outline, notes = excluded.notes`,
		trip.Owner, trip.ID, trip.Name, trip.Color, trip.Start.String(), trip.End.String(),
		trip.Pinned, outline, notes)
	if err != nil {
		return fmt.Errorf("upsert trip %s: %w", trip.ID, err)
	}
	return nil
}

func (s *Store) DeleteTrip(ctx context.Context, owner, id string) error {
	res, err := s.exec(ctx, `DELETE FROM trips WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete trip %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) SaveTripContent(ctx context.Context, owner, id string, outline []model.Block, notes []string) error {
	o, n, err := encodeContent(outline, notes)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE trips SET outline = ?, notes = ? WHERE owner = ? AND id = ?`, o, n, owner, id)
	if err != nil {
		return fmt.Errorf("save trip content %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) CreateTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO tasks (owner, id, content, category, deadline, done, group_id, link_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	exists, err := tx.PrepareContext(ctx, s.rebind(`SELECT COUNT(*) FROM tasks WHERE owner = ? AND id = ?`))
	if err != nil {
		return err
	}
	defer exists.Close()

	for _, t := range tasks {
		var n int
		if err := exists.QueryRowContext(ctx, t.Owner, t.ID).Scan(&n); err != nil {
			return fmt.Errorf("create task %d: %w", t.ID, err)
		}
		if n > 0 {
			return fmt.Errorf("task %d: %w", t.ID, store.ErrExists)
		}
		deadline, group, note := taskColumns(t)
		if _, err := stmt.ExecContext(ctx, t.Owner, t.ID, t.Content, string(t.Category), deadline, t.Done, group, note); err != nil {
			return fmt.Errorf("create task %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	deadline, group, note := taskColumns(t)
	res, err := s.exec(ctx, `
		UPDATE tasks SET content = ?, category = ?, deadline = ?, done = ?, group_id = ?, link_note = ?
		WHERE owner = ? AND id = ?`,
		t.Content, string(t.Category), deadline, t.Done, group, note, t.Owner, t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return requireRow(res)
}

func (s *Store) SetTaskDone(ctx context.Context, owner string, id int64, done bool) error {
	res, err := s.exec(ctx, `UPDATE tasks SET done = ? WHERE owner = ? AND id = ?`, done, owner, id)
	if err != nil {
		return fmt.Errorf("set task %d done: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) DeleteTask(ctx context.Context, owner string, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) ClearTripLinks(ctx context.Context, owner, tripID string) error {
	_, err := s.exec(ctx, `UPDATE tasks SET group_id = NULL, link_note = NULL WHERE owner = ? AND group_id = ?`, owner, tripID)
	if err != nil {
		return fmt.Errorf("clear links to %s: %w", tripID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func taskColumns(t model.Task) (deadline, group, note sql.NullString) {
	if t.Dated() {
		deadline = sql.NullString{String: t.Deadline.String(), Valid: true}
	}
	if t.Link != nil && t.Link.GroupID != "" {
		group = sql.NullString{String: t.Link.GroupID, Valid: true}
		note = sql.NullString{String: t.Link.Note, Valid: t.Link.Note != ""}
	}
	return deadline, group, note
}

func encodeContent(outline []model.Block, notes []string) (string, string, error) {
	if outline == nil {
		outline = []model.Block{}
	}
	if notes == nil {
		notes = []string{}
	}
	o, err := json.Marshal(outline)
	if err != nil {
		return "", "", fmt.Errorf("encode outline: %w", err)
	}
	n, err := json.Marshal(notes)
	if err != nil {
		return "", "", fmt.Errorf("encode notes: %w", err)
	}
	return string(o), string(n), nil
}
