package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// PGStore keeps all collections in one pgvector table, keyed by
// (collection, id).
type PGStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPGStore(db *sql.DB, log *zap.Logger) *PGStore {
	return &PGStore{db: db, log: log}
}

// Migrate creates the extension and table. Vector dimensions are left
// unconstrained so the embedding model can change between deployments.
func (s *PGStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS embedding_chunks (
			collection    TEXT NOT NULL,
			id            TEXT NOT NULL,
			document_id   TEXT NOT NULL,
			document_type TEXT NOT NULL,
			chunk_num     INT NOT NULL,
			content       TEXT NOT NULL DEFAULT '',
			embedding     vector NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_chunks_document
			ON embedding_chunks (collection, document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate vector store: %w", err)
		}
	}
	return nil
}

// EnsureCollection is a no-op: collections are a column, not a table.
func (s *PGStore) EnsureCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("collection name is required")
	}
	return nil
}

func (s *PGStore) Add(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding_chunks (collection, id, document_id, document_type, chunk_num, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			collection,
			r.ID,
			r.Metadata.DocumentID,
			r.Metadata.DocumentType,
			r.Metadata.ChunkNum,
			r.Content,
			pgvector.NewVector(r.Vector),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	s.log.Debug("[VectorStore] added chunks", zap.String("collection", collection), zap.Int("count", len(records)))
	return nil
}

// whereClause appends the filter arguments to args and returns the predicate
// that references them.
func whereClause(collection string, filter Filter, args []any) (string, []any) {
	args = append(args, collection)
	conds := []string{fmt.Sprintf("collection = $%d", len(args))}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conds = append(conds, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		conds = append(conds, fmt.Sprintf("document_type = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (s *PGStore) Get(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	where, args := whereClause(collection, filter, nil)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, document_type, chunk_num, content, embedding
		FROM embedding_chunks
		WHERE `+where+`
		ORDER BY document_id, chunk_num`, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var vec pgvector.Vector
		if err := rows.Scan(&r.ID, &r.Metadata.DocumentID, &r.Metadata.DocumentType, &r.Metadata.ChunkNum, &r.Content, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		r.Vector = vec.Slice()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) Query(ctx context.Context, collection string, vectors [][]float32, n int, filter Filter) ([][]Hit, error) {
	results := make([][]Hit, len(vectors))
	if n <= 0 {
		return results, nil
	}

	for i, v := range vectors {
		args := []any{pgvector.NewVector(v)}
		where, args := whereClause(collection, filter, args)
		args = append(args, n)

		rows, err := s.db.QueryContext(ctx, `
			SELECT id, document_id, document_type, chunk_num, embedding <=> $1 AS distance
			FROM embedding_chunks
			WHERE `+where+`
			ORDER BY embedding <=> $1
			LIMIT $`+fmt.Sprint(len(args)), args...)
		if err != nil {
			return nil, fmt.Errorf("query chunks: %w", err)
		}

		var hits []Hit
		for rows.Next() {
			var h Hit
			if err := rows.Scan(&h.ID, &h.Metadata.DocumentID, &h.Metadata.DocumentType, &h.Metadata.ChunkNum, &h.Distance); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan hit: %w", err)
			}
			hits = append(hits, h)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		results[i] = hits
	}
	return results, nil
}
