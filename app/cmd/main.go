package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"caagent/app/agent"
	"caagent/app/cli"
	"caagent/app/server"
	"caagent/config"
	"caagent/kb"
	"caagent/laws"
	"caagent/memory"
	"caagent/model"
	"caagent/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cliMode := flag.Bool("cli", false, "run the interactive CLI instead of the HTTP server")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	a, cleanup, err := buildAgent(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	if *cliMode {
		cli.Run(a)
		return
	}

	s := server.New(cfg.ServerAddr, cfg.StaticDir, a)
	go s.Run()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

// buildAgent wires the agent from the configured backends. The laws
// mapping and the index are optional; only the API key is required.
func buildAgent(cfg config.Config) (*agent.Agent, func(), error) {
	client := model.NewOpenAIClient(cfg.OpenAIKey, cfg.EmbeddingModel, cfg.OpenAITimeout, cfg.OpenAIRetries)

	storer, cleanup, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	lawsDB, err := laws.Load(cfg.LawsFile)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load laws DB: %w", err)
	}

	registry := agent.NewRegistry()
	registry.Register(agent.LawsTool(lawsDB))

	a := agent.New(
		client,
		kb.New(client, storer),
		memory.NewStore(cfg.MemoryWindow),
		registry,
		cfg.ChatModel,
		cfg.TopK,
	)
	return a, cleanup, nil
}

func openStore(cfg config.Config) (store.VectorStorer, func(), error) {
	if cfg.KBBackend == "postgres" {
		ctx := context.Background()
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

	fs, err := store.NewFileStore(cfg.IndexFile, cfg.MetaFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load index: %w", err)
	}
	return fs, func() {}, nil
}
