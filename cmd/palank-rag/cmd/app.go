package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/PALAN-K/palank-rag/internal/chunk"
	"github.com/PALAN-K/palank-rag/internal/config"
	"github.com/PALAN-K/palank-rag/internal/embed"
	"github.com/PALAN-K/palank-rag/internal/output"
	"github.com/PALAN-K/palank-rag/internal/search"
	"github.com/PALAN-K/palank-rag/internal/store"
	"github.com/PALAN-K/palank-rag/internal/ui"
)

// app bundles the wired-up components behind one CLI invocation.
type app struct {
	cfg        *config.Config
	out        *output.Writer
	retriever  *search.Retriever
	keyword    store.KeywordStore
	vector     *store.HNSWStore
	vectorPath string
	lock       *store.DirLock

	// dirty marks that the vector store changed and the snapshot must
	// be rewritten on close.
	dirty bool
}

// newApp loads config, takes the data-dir lock, and opens both stores
// plus the embedding pipeline. Callers must Close().
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	out := output.New(os.Stdout, ui.StylesFor(os.Stdout, flagNoColor))

	// One process per data directory: a second writer would corrupt the
	// vector snapshot.
	lock := store.NewDirLock(cfg.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("data directory %s is in use by another palank-rag process", cfg.DataDir)
	}

	a := &app{cfg: cfg, out: out, lock: lock}
	if err := a.open(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return a, nil
}

func (a *app) open() error {
	if detected := store.DetectKeywordBackend(a.cfg.DataDir); detected != "" &&
		string(detected) != a.cfg.Search.KeywordBackend {
		a.out.Warningf("existing %s index found but keyword_backend is %q; the old index will be ignored",
			detected, a.cfg.Search.KeywordBackend)
	}

	keyword, err := store.NewKeywordStore(a.cfg.DataDir, a.cfg.Search.KeywordBackend)
	if err != nil {
		return err
	}

	a.vectorPath = store.VectorStorePath(a.cfg.DataDir)
	if dims, err := store.ReadHNSWStoreDimensions(a.vectorPath); err == nil &&
		dims != 0 && dims != a.cfg.Embeddings.Dimensions {
		_ = keyword.Close()
		return fmt.Errorf("vector snapshot has %d dimensions but config asks for %d; delete %s to re-embed",
			dims, a.cfg.Embeddings.Dimensions, a.vectorPath)
	}
	vector, err := store.OpenHNSWStore(a.vectorPath, store.DefaultVectorStoreConfig(a.cfg.Embeddings.Dimensions))
	if err != nil {
		_ = keyword.Close()
		return err
	}

	gemini, err := embed.NewGeminiEmbedder(embed.GeminiConfig{
		Model:             a.cfg.Embeddings.Model,
		Dimensions:        a.cfg.Embeddings.Dimensions,
		RequestsPerWindow: a.cfg.Embeddings.RequestsPerWindow,
		Window:            a.cfg.Embeddings.WindowDuration(),
		MinDelay:          a.cfg.Embeddings.MinDelayDuration(),
		MaxRetries:        a.cfg.Embeddings.MaxRetries,
		BackoffBase:       a.cfg.Embeddings.BackoffBaseDuration(),
		Timeout:           a.cfg.Embeddings.TimeoutDuration(),
	})
	if err != nil {
		_ = keyword.Close()
		_ = vector.Close()
		return err
	}
	embedder := embed.NewCachedEmbedder(gemini, a.cfg.Embeddings.CacheSize)

	chunker := chunk.NewMarkdownChunkerWithConfig(chunk.Config{
		MinSize:     a.cfg.Chunker.MinSize,
		MaxSize:     a.cfg.Chunker.MaxSize,
		OverlapSize: a.cfg.Chunker.OverlapSize,
	})

	retriever, err := search.NewRetriever(keyword, vector, embedder, chunker, search.RetrieverConfig{
		RRFConstant: a.cfg.Search.RRFConstant,
		Overfetch:   a.cfg.Search.Overfetch,
	})
	if err != nil {
		_ = keyword.Close()
		_ = vector.Close()
		_ = embedder.Close()
		return err
	}

	a.keyword = keyword
	a.vector = vector
	a.retriever = retriever
	return nil
}

// markDirty flags the vector snapshot for persistence on close.
func (a *app) markDirty() { a.dirty = true }

// Close persists the vector snapshot if it changed, then releases
// everything including the data-dir lock.
func (a *app) Close() error {
	var errs []error

	if a.dirty {
		if err := a.vector.Save(a.vectorPath); err != nil {
			errs = append(errs, fmt.Errorf("save vector snapshot: %w", err))
		} else {
			slog.Debug("vector_snapshot_saved", slog.String("path", a.vectorPath))
		}
	}

	if err := a.retriever.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
