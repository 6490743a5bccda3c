// Package vectorstore stores embedding chunks and answers nearest-neighbour
// queries by cosine distance.
package vectorstore

import (
	"context"
	"fmt"
)

const (
	JobsCollection       = "jobs_collection"
	CandidatesCollection = "candidates_collection"
)

const (
	DocTypeResume = "resume"
	DocTypeJob    = "job"
)

type Metadata struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	ChunkNum     int    `json:"chunk_num"`
}

// Record is one embedded chunk of a document.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
	Content  string
}

// Hit is a query result. Distance is cosine distance, so 1-Distance is the
// cosine similarity.
type Hit struct {
	ID       string
	Metadata Metadata
	Distance float64
}

// Filter restricts Get and Query by metadata. Empty fields match anything.
type Filter struct {
	DocumentID   string
	DocumentType string
}

func (f Filter) matches(m Metadata) bool {
	if f.DocumentID != "" && f.DocumentID != m.DocumentID {
		return false
	}
	if f.DocumentType != "" && f.DocumentType != m.DocumentType {
		return false
	}
	return true
}

// Store is the capability the ingestion and matching code need from a
// vector database.
type Store interface {
	EnsureCollection(ctx context.Context, name string) error
	Add(ctx context.Context, collection string, records []Record) error
	Get(ctx context.Context, collection string, filter Filter) ([]Record, error)
	// Query returns, for each query vector, up to n hits ordered by
	// ascending distance.
	Query(ctx context.Context, collection string, vectors [][]float32, n int, filter Filter) ([][]Hit, error)
}

// ChunkID is the record id of chunk i of a document.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_%d", documentID, i)
}

// BuildRecords pairs chunk texts with their vectors. Both slices must have
// the same length.
func BuildRecords(documentID, documentType string, chunks []string, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	records := make([]Record, len(chunks))
	for i := range chunks {
		records[i] = Record{
			ID:     ChunkID(documentID, i),
			Vector: vectors[i],
			Metadata: Metadata{
				DocumentID:   documentID,
				DocumentType: documentType,
				ChunkNum:     i,
			},
			Content: chunks[i],
		}
	}
	return records, nil
}
