package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cv-match/internal/profile"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

type DB struct {
	connection *sql.DB
	log        *zap.Logger
}

func NewDB(dataSourceName string, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{connection: db, log: log}, nil
}

// Conn exposes the pool so the vector store can share it.
func (db *DB) Conn() *sql.DB {
	return db.connection
}

func (db *DB) Close() {
	if err := db.connection.Close(); err != nil {
		db.log.Error("error closing the database connection", zap.Error(err))
	}
}

func (db *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL,
			status        TEXT NOT NULL,
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			id            TEXT PRIMARY KEY,
			job_id        TEXT REFERENCES jobs(id) ON DELETE SET NULL,
			filename      TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			profile       JSONB,
			full_text     TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_job_id ON candidates (job_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.connection.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (db *DB) CreateJob(ctx context.Context, job *Job) error {
	query := `INSERT INTO jobs (id, title, description, status, error_message, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := db.connection.ExecContext(ctx, query,
		job.ID, job.Title, job.Description, job.Status, job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const jobColumns = `id, title, description, status, error_message, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	j := &Job{}
	var errMsg sql.NullString
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Status, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		j.ErrorMessage = &errMsg.String
	}
	return j, nil
}

func (db *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	row := db.connection.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "job", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (db *DB) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := db.connection.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var res []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

func (db *DB) UpdateJobStatus(ctx context.Context, id string, status Status, errMsg *string) error {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE jobs SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return expectRow(res, "job", id)
}

func (db *DB) CreateCandidate(ctx context.Context, c *Candidate) error {
	profileJSON, err := marshalProfile(c.Profile)
	if err != nil {
		return err
	}
	query := `INSERT INTO candidates (id, job_id, filename, name, profile, full_text, status, error_message, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = db.connection.ExecContext(ctx, query,
		c.ID, c.JobID, c.Filename, c.Name, profileJSON, c.FullText, c.Status, c.ErrorMessage, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

const candidateColumns = `id, job_id, filename, name, profile, full_text, status, error_message, created_at, updated_at`

func scanCandidate(row interface{ Scan(...any) error }) (*Candidate, error) {
	c := &Candidate{}
	var jobID, errMsg sql.NullString
	var profileJSON []byte
	err := row.Scan(&c.ID, &jobID, &c.Filename, &c.Name, &profileJSON, &c.FullText, &c.Status, &errMsg, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if jobID.Valid {
		c.JobID = &jobID.String
	}
	if errMsg.Valid {
		c.ErrorMessage = &errMsg.String
	}
	if len(profileJSON) > 0 {
		var p profile.Profile
		if err := json.Unmarshal(profileJSON, &p); err != nil {
			return nil, fmt.Errorf("decode profile of candidate %s: %w", c.ID, err)
		}
		c.Profile = &p
	}
	return c, nil
}

func (db *DB) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	row := db.connection.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "candidate", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func (db *DB) ListCandidatesByJob(ctx context.Context, jobID string) ([]*Candidate, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var res []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (db *DB) UpdateCandidate(ctx context.Context, c *Candidate) error {
	profileJSON, err := marshalProfile(c.Profile)
	if err != nil {
		return err
	}
	res, err := db.connection.ExecContext(ctx, `
		UPDATE candidates
		SET name = $2, profile = $3, full_text = $4, status = $5, error_message = $6, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, profileJSON, c.FullText, c.Status, c.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return expectRow(res, "candidate", c.ID)
}

// marshalProfile returns nil for a nil profile so the column stays NULL.
// The JSON goes out as text: lib/pq would send []byte as bytea.
func marshalProfile(p *profile.Profile) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return string(b), nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
