package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"forge/internal/client"
	"forge/internal/config"
	"forge/internal/event"
	"forge/internal/logging"
	"forge/internal/orch"
	"forge/internal/plan"
	"forge/internal/project"
	"forge/internal/rag"
	"forge/internal/store"
	"forge/internal/syncer"
)

// maxSeedFileSize bounds files loaded from disk into the project tree.
const maxSeedFileSize = 1 << 20

// app wires the long-lived pieces every command needs. Agent clients are
// created separately, only by commands that talk to a model provider.
type app struct {
	cfg       *config.Config
	configDir string
	bus       *event.Bus
	proj      *project.Project
	store     *store.SQLiteStore

	client client.Client
	index  *rag.Index
	orch   *orch.Orchestrator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagProvider != "" {
		cfg.API.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.API.PlannerModel = flagModel
		cfg.API.CoderModel = flagModel
	}
	if flagDebug {
		cfg.Logging.Level = "debug"
	}

	configDir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	level := logging.Level(cfg.Logging.Level)
	if cfg.Logging.File {
		if err := logging.EnableFileLogging(configDir, level); err != nil {
			return nil, err
		}
	} else {
		logging.Configure(level, os.Stderr)
	}

	root, err := filepath.Abs(flagDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = filepath.Join(configDir, "forge.db")
	}
	st, err := store.NewSQLite(storePath)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, err
	}

	proj := project.New(root)
	proj.ID = stableProjectID(root)

	// Restore the last committed tree, then let the disk win: files edited
	// or added outside of a session re-enter as fresh commits.
	snap, err := st.LoadSnapshot(ctx, proj.ID)
	switch {
	case err == nil:
		proj = project.Restore(snap)
		proj.Root = root
	case !errors.Is(err, sql.ErrNoRows):
		// No snapshot is normal for a fresh project; anything else means the
		// store is unhealthy and the empty tree is not the whole truth.
		logging.Warn("loading project snapshot failed", "project", proj.ID, "error", err)
	}
	if err := seedFromDisk(proj); err != nil {
		logging.Warn("scanning project directory failed", "root", root, "error", err)
	}

	return &app{
		cfg:       cfg,
		configDir: configDir,
		bus:       event.NewBus(),
		proj:      proj,
		store:     st,
	}, nil
}

// initAgents validates provider settings and builds the client, knowledge
// index, and orchestrator.
func (a *app) initAgents(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	c, err := client.New(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.client = c

	cache := rag.NewEmbeddingCache(a.configDir, a.proj.ID, a.cfg.RAG.CacheTTL)
	chunker := rag.NewStructuralChunker(a.cfg.RAG.ChunkSize, a.cfg.RAG.Overlap)
	a.index = rag.NewIndex(c, chunker, cache)

	sy := syncer.New(a.proj, a.bus)
	planner := plan.NewPlanner(c, a.index, a.cfg.RAG.TopK)
	a.orch = orch.New(*a.cfg, c, a.proj, sy, planner, a.index, a.store, a.bus)
	return nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	a.bus.Close()
	a.store.Close()
	logging.Close()
}

// stableProjectID derives a deterministic project id from the root path so
// snapshots and history survive across runs.
func stableProjectID(root string) string {
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:8])
}

// seedFromDisk loads existing project files into the tree. Text files only;
// anything binary, oversized, or ignored is skipped.
func seedFromDisk(p *project.Project) error {
	return filepath.WalkDir(p.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.Root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if project.Ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if project.Ignored(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSeedFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || !utf8.Valid(data) {
			return nil
		}

		if node, ok := p.Get(rel); ok && node.Content == string(data) {
			return nil
		}
		_, _ = p.Commit(rel, string(data))
		return nil
	})
}
