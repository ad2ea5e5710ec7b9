// Package queue owns the photo slot collection: capacity and primary
// invariants, concurrent adds, upload orchestration and memory pressure.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
	"github.com/openann19/petphotos/ingest"
	"github.com/openann19/petphotos/outcome"
	"github.com/openann19/petphotos/upload"
)

// Ingester acquires one validated, processed asset.
type Ingester interface {
	Ingest(ctx context.Context) (ingest.Result, error)
}

// Uploader transfers one processed asset on behalf of a slot.
type Uploader interface {
	Upload(ctx context.Context, asset core.ProcessedAsset, target upload.Target) core.TransportResult
}

// entry is one slot plus the bookkeeping its upload needs. mu guards slot,
// token, removed and version; collection writers hold Manager.mu before mu.
type entry struct {
	mu      sync.Mutex
	slot    core.PhotoSlot
	token   uint64
	removed bool
	cancel  context.CancelFunc
	version uint64

	// deliverMu orders observer calls for this slot; delivered is the
	// newest version observers have seen.
	deliverMu sync.Mutex
	delivered uint64
}

// change is a slot snapshot tagged with the entry version it was taken at.
type change struct {
	e       *entry
	version uint64
	slot    core.PhotoSlot
}

func (e *entry) snapshot() core.PhotoSlot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slot.Clone()
}

// capture must be called with mu held.
func (e *entry) capture() change {
	e.version++
	return change{e: e, version: e.version, slot: e.slot.Clone()}
}

func (e *entry) setPrimary(v bool) (change, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.slot.IsPrimary == v {
		return change{}, false
	}
	e.slot.IsPrimary = v
	return e.capture(), true
}

// Manager is the photo queue for one editing session. All methods are safe
// for concurrent use.
type Manager struct {
	cfg      config.Queue
	ingester Ingester
	uploader Uploader
	logger   core.Logger

	mu              sync.RWMutex
	entries         []*entry
	reserved        int
	memoryOptimized bool
	closed          bool

	obsMu     sync.RWMutex
	observers []core.SlotObserver

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithObserver registers a slot observer at construction.
func WithObserver(o core.SlotObserver) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// NewManager creates an empty queue.
func NewManager(cfg config.Queue, ing Ingester, up Uploader, opts ...Option) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		ingester: ing,
		uploader: up,
		logger:   hooks.NopLogger{},
		baseCtx:  ctx,
		stop:     stop,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AddObserver registers o for every subsequent slot change.
func (m *Manager) AddObserver(o core.SlotObserver) {
	m.obsMu.Lock()
	m.observers = append(m.observers, o)
	m.obsMu.Unlock()
}

// ── Mutations ─────────────────────────────────────────────────────────────────

// AddPhoto acquires a photo and inserts its slot. It returns (nil, nil) when
// the user cancels the picker. Errors mean the collection is unchanged. A
// processor failure still inserts a slot, already in error status. The
// upload runs in the background; observe it through the slot's state.
func (m *Manager) AddPhoto(ctx context.Context) (*core.PhotoSlot, error) {
	if err := m.reserve(); err != nil {
		m.logger.Info("queue.add.rejected", "error", err)
		return nil, err
	}

	res, err := m.ingester.Ingest(ctx)
	if err != nil {
		m.release()
		if apperrors.Is(err, apperrors.ErrCancelled) {
			return nil, nil
		}
		m.logger.Info("queue.add.rejected", "error", err)
		return nil, err
	}

	var slot *core.PhotoSlot
	if res.Failure != nil {
		slot = core.NewFailedSlot(res.Asset, apperrors.UserMessage(res.Failure))
	} else {
		slot = core.NewUploadingSlot(res.Asset, *res.Processed)
	}

	e := &entry{slot: *slot}
	c, start, err := m.insert(e, res.Processed)
	if err != nil {
		return nil, err
	}
	snap := c.slot.Clone()
	m.logger.Info("queue.add.inserted", "slot", snap.ID, "status", snap.Status, "primary", snap.IsPrimary)
	m.notify(c)
	start()
	return &snap, nil
}

func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperrors.New(apperrors.CategoryInvariant, "queue.add", apperrors.ErrSessionClosed)
	}
	if len(m.entries)+m.reserved >= m.cfg.MaxPhotos {
		return apperrors.New(apperrors.CategoryCapacity, "queue.add", &apperrors.CapacityError{Max: m.cfg.MaxPhotos})
	}
	m.reserved++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}

// insert places e at the end of the collection, making it primary when the
// collection is empty. The returned start func launches the slot's upload
// when it has an asset to send.
func (m *Manager) insert(e *entry, asset *core.ProcessedAsset) (change, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved--
	if m.closed {
		return change{}, nil, apperrors.New(apperrors.CategoryInvariant, "queue.add", apperrors.ErrSessionClosed)
	}

	e.mu.Lock()
	e.slot.IsPrimary = len(m.entries) == 0
	c := e.capture()
	e.mu.Unlock()
	m.entries = append(m.entries, e)

	if c.slot.Status != core.StatusUploading || asset == nil {
		return c, func() {}, nil
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	e.cancel = cancel
	m.wg.Add(1)
	return c, func() { go m.runUpload(ctx, e, *asset) }, nil
}

// SetPrimaryPhoto promotes id and demotes the previous primary in one step.
func (m *Manager) SetPrimaryPhoto(id string) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return notFound("queue.set_primary", id)
	}
	changed := make([]change, 0, 2)
	for i, e := range m.entries {
		if c, ok := e.setPrimary(i == idx); ok {
			changed = append(changed, c)
		}
	}
	m.mu.Unlock()

	m.notify(changed...)
	return nil
}

// RemovePhoto deletes id. Removing the primary while others remain follows
// the configured RemovalPolicy. An in-flight upload for the slot is
// cancelled and its result discarded.
func (m *Manager) RemovePhoto(id string) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return notFound("queue.remove", id)
	}
	victim := m.entries[idx]
	victim.mu.Lock()
	wasPrimary := victim.slot.IsPrimary
	victim.mu.Unlock()

	if wasPrimary && len(m.entries) > 1 && m.cfg.RemovalPolicy == config.RemoveRejectPrimary {
		m.mu.Unlock()
		return apperrors.New(apperrors.CategoryInvariant, "queue.remove", apperrors.ErrPrimaryRemoval)
	}

	m.entries = append(m.entries[:idx:idx], m.entries[idx+1:]...)

	victim.mu.Lock()
	victim.removed = true
	victim.token++
	cancel := victim.cancel
	victim.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var promoted []change
	if wasPrimary && len(m.entries) > 0 {
		next := idx
		if next >= len(m.entries) {
			next = len(m.entries) - 1
		}
		if c, ok := m.entries[next].setPrimary(true); ok {
			promoted = append(promoted, c)
		}
	}
	m.mu.Unlock()

	m.logger.Info("queue.remove", "slot", id, "was_primary", wasPrimary)
	m.notify(promoted...)
	return nil
}

// ReorderPhotos moves id to newIndex, shifting the others. Primary is
// unaffected.
func (m *Manager) ReorderPhotos(id string, newIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.indexOf(id)
	if from < 0 {
		return notFound("queue.reorder", id)
	}
	if newIndex < 0 || newIndex >= len(m.entries) {
		return apperrors.New(apperrors.CategoryInvariant, "queue.reorder",
			fmt.Errorf("%w: %d not in [0, %d)", apperrors.ErrIndexOutOfRange, newIndex, len(m.entries)))
	}
	if from == newIndex {
		return nil
	}

	e := m.entries[from]
	rest := append(m.entries[:from:from], m.entries[from+1:]...)
	out := make([]*entry, 0, len(m.entries))
	out = append(out, rest[:newIndex]...)
	out = append(out, e)
	out = append(out, rest[newIndex:]...)
	m.entries = out
	return nil
}

// HandleMemoryWarning drops cached preview buffers of approved slots and
// marks the queue memory-optimized. Count, order and primary are unchanged.
// It returns the number of buffers released.
func (m *Manager) HandleMemoryWarning() int {
	m.mu.Lock()
	var changed []change
	for _, e := range m.entries {
		e.mu.Lock()
		if e.slot.ReleasePreview() {
			changed = append(changed, e.capture())
		}
		e.mu.Unlock()
	}
	m.memoryOptimized = true
	m.mu.Unlock()

	m.logger.Info("queue.memory_warning", "released", len(changed))
	m.notify(changed...)
	return len(changed)
}

// ── Uploads ───────────────────────────────────────────────────────────────────

func (m *Manager) runUpload(ctx context.Context, e *entry, asset core.ProcessedAsset) {
	defer m.wg.Done()
	result := m.uploader.Upload(ctx, asset, &slotTarget{m: m, e: e})
	m.finalize(e, outcome.Resolve(result))
}

// finalize applies the terminal resolution exactly once. Removed slots and
// slots already terminal are left alone.
func (m *Manager) finalize(e *entry, r core.Resolution) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}
	err := e.slot.Resolve(r)
	e.token++
	c := e.capture()
	e.mu.Unlock()

	if err != nil {
		m.logger.Error("queue.finalize.skipped", "slot", c.slot.ID, "error", err)
		return
	}
	m.logger.Info("queue.slot.resolved", "slot", c.slot.ID, "status", c.slot.Status, "retries", c.slot.RetryCount)
	m.notify(c)
}

// slotTarget binds an entry to the upload.Target contract.
type slotTarget struct {
	m *Manager
	e *entry
}

func (t *slotTarget) StartAttempt(n int) (uint64, bool) {
	t.e.mu.Lock()
	if t.e.removed || t.e.slot.IsTerminal() {
		t.e.mu.Unlock()
		return 0, false
	}
	t.e.token++
	token := t.e.token
	changed := t.e.slot.RetryCount != n-1
	t.e.slot.RetryCount = n - 1
	var c change
	if changed {
		c = t.e.capture()
	}
	t.e.mu.Unlock()

	if changed {
		t.m.notify(c)
	}
	return token, true
}

func (t *slotTarget) ReportProgress(token uint64, percent int) {
	t.e.mu.Lock()
	if t.e.removed || token != t.e.token || !t.e.slot.SetProgress(percent) {
		t.e.mu.Unlock()
		return
	}
	c := t.e.capture()
	t.e.mu.Unlock()
	t.m.notify(c)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Wait blocks until every in-flight upload has been resolved.
func (m *Manager) Wait() { m.wg.Wait() }

// Close refuses further adds, cancels in-flight uploads and waits for them
// to resolve. Cancelled slots end in error status.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// indexOf must be called with mu held.
func (m *Manager) indexOf(id string) int {
	for i, e := range m.entries {
		if e.slot.ID == id {
			return i
		}
	}
	return -1
}

// notify delivers changes to every observer. Calls for one slot are
// serialized and arrive in version order; a snapshot older than one already
// delivered is dropped, so a late progress update can never follow the
// slot's terminal state. Observers run on the goroutine that made the change
// and may read the queue but must not mutate it.
func (m *Manager) notify(changes ...change) {
	if len(changes) == 0 {
		return
	}
	m.obsMu.RLock()
	obs := m.observers
	m.obsMu.RUnlock()
	for _, c := range changes {
		c.e.deliverMu.Lock()
		if c.version > c.e.delivered {
			c.e.delivered = c.version
			for _, o := range obs {
				o.SlotChanged(c.slot)
			}
		}
		c.e.deliverMu.Unlock()
	}
}

func notFound(op, id string) error {
	return apperrors.New(apperrors.CategoryInvariant, op, fmt.Errorf("%w: %s", apperrors.ErrSlotNotFound, id))
}
