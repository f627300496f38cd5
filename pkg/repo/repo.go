// Package repo implements the version-control engine: an in-memory
// repository aggregate of branches, per-branch staging indexes, merge
// requests, and a reflog over a content-addressed object store.
package repo

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/events"
	"github.com/odvcencio/solvc/pkg/object"
)

// DefaultBranch is the branch created by Initialize unless overridden.
const DefaultBranch = "main"

// Repository is the aggregate root. Every exported method is safe for
// concurrent use: the whole aggregate is guarded by one mutex, and events
// are delivered after it is released so handlers may call back in.
type Repository struct {
	mu sync.Mutex

	store     *object.Store
	worktree  Worktree
	log       *logrus.Logger
	now       func() time.Time
	newID     func() string
	mergeOpts MergeOptions
	defBranch string

	bus   events.Bus[Event]
	queue events.Queue[Event]

	current       string
	branches      map[string]object.Hash
	indexes       map[string]*Index
	mergeRequests map[string]*MergeRequest
	reflog        map[string][]ReflogEntry

	mergeTraversalStateOnce sync.Once
	mergeTraversalState     *mergeBaseTraversalState
}

// Option configures a Repository.
type Option func(*Repository)

// WithStore sets the object store. The default is an in-memory store.
func WithStore(s *object.Store) Option {
	return func(r *Repository) { r.store = s }
}

// WithWorktree sets the worktree that Add reads from and checkouts write
// to. The default is an empty MemoryWorktree.
func WithWorktree(w Worktree) Option {
	return func(r *Repository) { r.worktree = w }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithClock sets the time source used for commit and reflog timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator sets the merge request id generator. The default
// produces random UUIDs.
func WithIDGenerator(f func() string) Option {
	return func(r *Repository) { r.newID = f }
}

// WithMergeOptions sets the options Merge uses.
func WithMergeOptions(o MergeOptions) Option {
	return func(r *Repository) { r.mergeOpts = o }
}

// WithDefaultBranch sets the branch Initialize creates.
func WithDefaultBranch(name string) Option {
	return func(r *Repository) { r.defBranch = name }
}

// New returns an uninitialized repository. Call Initialize, or commit on
// the default branch, to create the first commit.
func New(opts ...Option) *Repository {
	r := &Repository{
		now:           time.Now,
		newID:         uuid.NewString,
		defBranch:     DefaultBranch,
		branches:      make(map[string]object.Hash),
		indexes:       make(map[string]*Index),
		mergeRequests: make(map[string]*MergeRequest),
		reflog:        make(map[string][]ReflogEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = object.NewMemoryStore()
	}
	if r.worktree == nil {
		r.worktree = NewMemoryWorktree()
	}
	if r.log == nil {
		r.log = logrus.New()
		r.log.SetOutput(io.Discard)
	}
	if r.defBranch == "" {
		r.defBranch = DefaultBranch
	}
	r.current = r.defBranch
	return r
}

// Store returns the object store.
func (r *Repository) Store() *object.Store {
	return r.store
}

// Worktree returns the worktree.
func (r *Repository) Worktree() Worktree {
	return r.worktree
}

// Events returns the bus that repository events are published on.
func (r *Repository) Events() *events.Bus[Event] {
	return &r.bus
}

// Initialized reports whether the repository has at least one commit.
func (r *Repository) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.branches) > 0
}

func (r *Repository) lock() {
	r.mu.Lock()
}

// unlock releases the repository and publishes the events queued while it
// was held.
func (r *Repository) unlock() {
	pending := r.queue.Drain()
	r.mu.Unlock()
	r.bus.Publish(pending...)
}

func (r *Repository) getMergeTraversalState() *mergeBaseTraversalState {
	r.mergeTraversalStateOnce.Do(func() {
		r.mergeTraversalState = newMergeBaseTraversalState()
	})
	return r.mergeTraversalState
}

// index returns the staging index of a branch, creating it on demand.
func (r *Repository) index(branch string) *Index {
	idx, ok := r.indexes[branch]
	if !ok {
		idx = newIndex()
		r.indexes[branch] = idx
	}
	return idx
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC()
}
