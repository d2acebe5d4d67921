package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config carries every knob the binaries read from the environment.
// Call godotenv.Load in main before FromEnv, as with the rest of the
// env handling.
type Config struct {
	OpenAIKey      string
	EmbeddingModel string
	ChatModel      string

	IndexFile string
	MetaFile  string
	LawsFile  string
	KBDir     string
	StaticDir string

	ChunkSize    int
	TopK         int
	MemoryWindow int

	ServerAddr string

	KBBackend  string // "file" or "postgres"
	PGHost     string
	PGPort     int
	PGUser     string
	PGPass     string
	PGDBName   string
	DoclingURL string

	OpenAITimeout time.Duration
	OpenAIRetries int
}

// FromEnv builds a Config from the environment, applying defaults for
// everything except the API key, which is required.
func FromEnv() (Config, error) {
	cfg := Config{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: getenv("EMBEDDING_MODEL", "text-embedding-3-large"),
		ChatModel:      getenv("CHAT_MODEL", "gpt-4o-mini"),
		IndexFile:      getenv("INDEX_FILE", "kb_index.gob"),
		MetaFile:       getenv("META_FILE", "kb_meta.json"),
		LawsFile:       getenv("LAWS_FILE", "laws.json"),
		KBDir:          getenv("KB_DIR", "kb"),
		StaticDir:      getenv("STATIC_DIR", "static"),
		ChunkSize:      getint("CHUNK_SIZE", 800),
		TopK:           getint("TOP_K", 4),
		MemoryWindow:   getint("MEMORY_WINDOW", 6),
		ServerAddr:     getenv("SERVER_ADDR", ":8000"),
		KBBackend:      getenv("KB_BACKEND", "file"),
		PGHost:         os.Getenv("PG_HOST"),
		PGPort:         getint("PG_PORT", 5432),
		PGUser:         os.Getenv("PG_USER"),
		PGPass:         os.Getenv("PG_PASS"),
		PGDBName:       os.Getenv("PG_DB_NAME"),
		DoclingURL:     os.Getenv("DOCLING_URL"),
		OpenAITimeout:  time.Duration(getint("OPENAI_TIMEOUT_SECS", 60)) * time.Second,
		OpenAIRetries:  getint("OPENAI_RETRIES", 2),
	}

	if cfg.OpenAIKey == "" {
		return cfg, errors.New("OPENAI_API_KEY is not set")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
