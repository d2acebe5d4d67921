package main

import (
	"context"
	"fmt"
	"log"

	"caagent/config"
	"caagent/loader/service"
	"caagent/model"
	"caagent/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	storer, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	embedder := model.NewOpenAIClient(cfg.OpenAIKey, cfg.EmbeddingModel, cfg.OpenAITimeout, cfg.OpenAIRetries)

	if err := service.New(embedder, storer, cfg.KBDir, cfg.ChunkSize, cfg.DoclingURL).Run(ctx); err != nil {
		log.Fatal(err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.VectorStorer, func(), error) {
	if cfg.KBBackend == "postgres" {
		connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.PGHost, cfg.PGPort, cfg.PGUser, cfg.PGPass, cfg.PGDBName)
		pg, err := store.NewPostgresStore(ctx, connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to Postgres: %w", err)
		}
		if err := pg.Init(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("create tables: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	}

	// A fresh build starts from an empty store even when old files
	// exist, so stale vectors are never appended to.
	fs := store.NewEmptyFileStore(cfg.IndexFile, cfg.MetaFile)
	return fs, func() {}, nil
}
