package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row cannot be located.
var ErrNotFound = errors.New("state: not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateBuild(ctx context.Context, b Build) (Build, error) {
	if b.ID == "" || b.Kind == "" || b.ContainerID == "" {
		return Build{}, errors.New("build id, kind, and container id required")
	}
	if b.State == "" {
		b.State = BuildStateCreated
	}
	row := s.db.QueryRowContext(ctx, `
INSERT INTO builds (id, kind, version, container_id, state)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`, b.ID, b.Kind, b.Version, b.ContainerID, b.State)
	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return Build{}, fmt.Errorf("insert build %s: %w", b.ID, err)
	}
	return b, nil
}

func (s *Store) GetBuild(ctx context.Context, id string) (Build, error) {
	row := s.db.QueryRowContext(ctx, selectBuild+` WHERE id = $1`, id)
	b, err := scanBuild(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Build{}, fmt.Errorf("%w: build %s", ErrNotFound, id)
		}
		return Build{}, err
	}
	return b, nil
}

// ListBuilds returns the newest builds first. An empty kind lists every kind.
func (s *Store) ListBuilds(ctx context.Context, kind string, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectBuild+`
WHERE ($1 = '' OR kind = $1)
ORDER BY created_at DESC, id
LIMIT $2`, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// TransitionBuildState enforces the build state machine using row-level
// locking. A build already in a terminal state keeps it: only the exit code
// and log tail of a late report are stored.
func (s *Store) TransitionBuildState(ctx context.Context, id string, next BuildState, update BuildUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current BuildState
		if err := tx.QueryRowContext(ctx, `SELECT state FROM builds WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: build %s", ErrNotFound, id)
			}
			return err
		}
		return transitionLocked(ctx, tx, id, current, next, update)
	})
}

// TransitionBuildByContainer transitions the newest build running in
// containerID. The abort path only knows container ids.
func (s *Store) TransitionBuildByContainer(ctx context.Context, containerID string, next BuildState) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			id      string
			current BuildState
		)
		err := tx.QueryRowContext(ctx, `
SELECT id, state FROM builds
WHERE container_id = $1
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE`, containerID).Scan(&id, &current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: container %s", ErrNotFound, containerID)
			}
			return err
		}
		return transitionLocked(ctx, tx, id, current, next, BuildUpdate{})
	})
}

func transitionLocked(ctx context.Context, tx *sql.Tx, id string, current, next BuildState, update BuildUpdate) error {
	if current.Terminal() && !next.Terminal() {
		_, err := tx.ExecContext(ctx, `
UPDATE builds
SET exit_code = COALESCE($2, exit_code),
    log_tail = CASE WHEN $3 = '' THEN log_tail ELSE $3 END,
    updated_at = NOW()
WHERE id = $1`, id, update.ExitCode, update.LogTail)
		return err
	}
	if err := validateBuildTransition(id, current, next); err != nil {
		return err
	}

	var finishedAt *time.Time
	if next.Terminal() {
		now := time.Now().UTC()
		finishedAt = &now
	}
	_, err := tx.ExecContext(ctx, `
UPDATE builds
SET state = $2,
    exit_code = COALESCE($3, exit_code),
    log_tail = CASE WHEN $4 = '' THEN log_tail ELSE $4 END,
    finished_at = COALESCE($5, finished_at),
    updated_at = NOW()
WHERE id = $1`, id, next, update.ExitCode, update.LogTail, finishedAt)
	return err
}

// SetLogURI records where a failed build's log tail was archived.
func (s *Store) SetLogURI(ctx context.Context, id, uri string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE builds SET log_uri = $2, updated_at = NOW() WHERE id = $1`, id, uri)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: build %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

const selectBuild = `
SELECT id, kind, version, container_id, state, exit_code, log_tail, log_uri, created_at, updated_at, finished_at
FROM builds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (Build, error) {
	var (
		b        Build
		exitCode sql.NullInt64
		logURI   sql.NullString
		finished sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.Kind, &b.Version, &b.ContainerID, &b.State, &exitCode, &b.LogTail, &logURI, &b.CreatedAt, &b.UpdatedAt, &finished); err != nil {
		return Build{}, err
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		b.ExitCode = &code
	}
	if logURI.Valid {
		b.LogURI = &logURI.String
	}
	if finished.Valid {
		b.FinishedAt = &finished.Time
	}
	return b, nil
}
