// Package engine sequences a backup run: lock, mount checks, snapshot,
// parent selection, size and space checks, the transfer pipeline,
// identifier verification, retention pruning, and failure cleanup. It is
// the only package that mutates run state.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/majorcontext/berm/internal/config"
	"github.com/majorcontext/berm/internal/estimate"
	"github.com/majorcontext/berm/internal/history"
	"github.com/majorcontext/berm/internal/lockfile"
	"github.com/majorcontext/berm/internal/mount"
	"github.com/majorcontext/berm/internal/pipeline"
	"github.com/majorcontext/berm/internal/snapshot"
	"github.com/majorcontext/berm/internal/verify"
)

// Snapshots is the snapshot-manager surface the engine consumes.
// *snapshot.Manager is the production implementation.
type Snapshots interface {
	Base() string
	SourcePath(name string) string
	DestPath(name string) string
	DestDir() string
	Create(ctx context.Context) (string, error)
	Delete(ctx context.Context, path string) error
	ListSource() ([]string, error)
	ListDest() ([]string, error)
	SelectParent(current string) (string, error)
}

// releaser is the held run lock.
type releaser interface {
	Release() error
}

// Engine owns one run's state machine and the collaborators it drives.
// The function fields default to the real implementations and are
// replaceable in tests.
type Engine struct {
	cfg   *config.Config
	obs   Observer
	snaps Snapshots
	hist  *history.Store

	acquireLock  func(ctx context.Context, path string) (releaser, error)
	verifyMount  func(ctx context.Context, path string) error
	estimateFull func(ctx context.Context, path string) (int64, error)
	estimateIncr func(ctx context.Context, parentPath, currentPath string, sourceBytes int64) int64
	checkSpace   func(ctx context.Context, mountPath string, required, buffer int64) error
	transfer     func(ctx context.Context, opts pipeline.Options) error
	verifyPair   func(ctx context.Context, sourcePath, destPath string) error
	verifyParent func(ctx context.Context, sourcePath, destPath string) error
	now          func() time.Time
}

// Option adjusts an Engine at construction.
type Option func(*Engine)

// WithObserver sets the run observer.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.obs = obs }
}

// WithHistory attaches the run ledger. Ledger failures are reported as
// warnings and never fail a run.
func WithHistory(h *history.Store) Option {
	return func(e *Engine) { e.hist = h }
}

// New creates an Engine for the given configuration.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		obs:   NopObserver{},
		snaps: snapshot.NewManager(cfg.SourceVolume, cfg.SnapshotDir, cfg.DestinationMount),

		acquireLock: func(ctx context.Context, path string) (releaser, error) {
			return lockfile.Acquire(ctx, path)
		},
		verifyMount:  mount.Verify,
		estimateFull: estimate.Full,
		estimateIncr: estimate.Incremental,
		checkSpace:   estimate.CheckSpace,
		transfer:     pipeline.Run,
		verifyPair:   verify.Pair,
		verifyParent: verify.Ancestor,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newRunID generates a short identifier correlating log lines and the
// history ledger for one run.
func newRunID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "run_00000000"
	}
	return "run_" + hex.EncodeToString(b)
}
