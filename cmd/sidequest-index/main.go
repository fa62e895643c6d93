// Command sidequest-index loads lore entries from a JSON file, embeds each
// entry's document text, and upserts them into the PostgreSQL knowledge
// store the copilot retrieves from.
//
// Usage:
//
//	sidequest-index -config sidequest.yaml -entries lore.json
//
// The config file supplies the Postgres DSN and the embeddings provider;
// re-running the command on an updated JSON file refreshes existing rows in
// place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perchfield/sidequest/internal/config"
	"github.com/perchfield/sidequest/internal/knowledge"
	knowledgepg "github.com/perchfield/sidequest/internal/knowledge/postgres"
	"github.com/perchfield/sidequest/pkg/provider/embeddings"
	ollamaembed "github.com/perchfield/sidequest/pkg/provider/embeddings/ollama"
	oaembed "github.com/perchfield/sidequest/pkg/provider/embeddings/openai"
)

// embedBatchSize bounds how many documents go to the embeddings backend in
// one request. OpenAI caps batch inputs well above this; staying small keeps
// request bodies reasonable for long lore entries.
const embedBatchSize = 64

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "sidequest.yaml", "path to the YAML configuration file")
	entriesPath := flag.String("entries", "", "path to the JSON file of lore entries to index")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *entriesPath == "" {
		fmt.Fprintln(os.Stderr, "sidequest-index: -entries is required")
		flag.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidequest-index: %v\n", err)
		return 1
	}
	if cfg.Knowledge.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "sidequest-index: knowledge.postgres_dsn is not configured")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := index(ctx, cfg, *entriesPath); err != nil {
		slog.Error("indexing failed", "err", err)
		return 1
	}
	return 0
}

func index(ctx context.Context, cfg *config.Config, entriesPath string) error {
	entries, err := loadEntries(entriesPath)
	if err != nil {
		return err
	}
	slog.Info("entries loaded", "file", entriesPath, "count", len(entries))

	embedder, err := buildEmbedder(cfg.Providers.Embeddings)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Knowledge.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	store := knowledgepg.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	for start := 0; start < len(entries); start += embedBatchSize {
		end := min(start+embedBatchSize, len(entries))
		batch := entries[start:end]

		docs := make([]string, len(batch))
		for i := range batch {
			docs[i] = batch[i].Document()
		}
		vecs, err := embedder.EmbedBatch(ctx, docs)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d documents", start, len(vecs), len(batch))
		}

		for i := range batch {
			batch[i].Embedding = vecs[i]
			if err := store.Upsert(ctx, &batch[i]); err != nil {
				return fmt.Errorf("upsert %q: %w", batch[i].ID, err)
			}
		}
		slog.Info("batch indexed", "from", start, "to", end)
	}

	slog.Info("indexing complete", "entries", len(entries))
	return nil
}

// loadEntries reads a JSON array of lore entries and rejects records the
// store would refuse anyway, before any embedding spend.
func loadEntries(path string) ([]knowledge.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	var entries []knowledge.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse entries: %w", err)
	}

	for i := range entries {
		if entries[i].ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if entries[i].Name == "" {
			return nil, fmt.Errorf("entry %q: missing name", entries[i].ID)
		}
	}
	return entries, nil
}

func buildEmbedder(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ollama":
		p, err := ollamaembed.New(entry.BaseURL, entry.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("providers.embeddings is not configured")
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}
