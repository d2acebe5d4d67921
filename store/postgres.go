package store

import (
	"context"
	"errors"
	"log/slog"

	"caagent/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps chunk vectors in a pgvector-enabled table.
// Positions are assigned at insert time so row order stays aligned
// with the order chunks were produced in.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS kb_chunks (
        position INT PRIMARY KEY,
        file TEXT NOT NULL,
        content TEXT NOT NULL,
        embedding vector NOT NULL
    );

	CREATE INDEX IF NOT EXISTS idx_kb_chunks_file ON kb_chunks(file);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Add(ctx context.Context, chunks []types.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}

	start := p.Len(ctx)
	for i := range chunks {
		query := `INSERT INTO kb_chunks (position, file, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (position) DO UPDATE SET
			file = EXCLUDED.file,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
			`
		_, err := p.pool.Exec(ctx, query,
			start+i, chunks[i].File, chunks[i].Text, pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) Search(ctx context.Context, vector []float32, topK int) ([]types.Chunk, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}

	query := `
		SELECT file, content
		FROM kb_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(&chunk.File, &chunk.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) Len(ctx context.Context) int {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM kb_chunks").Scan(&count); err != nil {
		p.logger.Error("count kb_chunks", "error", err)
		return 0
	}
	return count
}

// Persist is a no-op: rows are durable as soon as they are inserted.
func (p *PostgresStore) Persist() error {
	return nil
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
	return nil
}
