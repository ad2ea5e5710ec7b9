package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	"github.com/openann19/petphotos/core/corefakes"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/ingest"
	"github.com/openann19/petphotos/queue"
	"github.com/openann19/petphotos/upload"
)

type harness struct {
	m         *queue.Manager
	picker    *corefakes.FakePicker
	processor *corefakes.FakeAssetProcessor
	transport *corefakes.FakeTransport
	events    *recorder
}

type recorder struct {
	mu    sync.Mutex
	slots []core.PhotoSlot
}

func (r *recorder) SlotChanged(s core.PhotoSlot) {
	r.mu.Lock()
	r.slots = append(r.slots, s)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func petAsset() core.Asset {
	return core.Asset{
		URI:      "file:///photos/rex.jpg",
		Name:     "rex.jpg",
		Width:    1024,
		Height:   768,
		ByteSize: 1 << 20,
		MimeType: "image/jpeg",
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Upload.Timeout = 2 * time.Second
	cfg.Upload.AttemptTimeout = 0
	cfg.Upload.Retry = config.Retry{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return cfg
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	h := &harness{
		picker:    corefakes.NewFakePicker(petAsset()),
		processor: corefakes.NewFakeAssetProcessor(),
		transport: &corefakes.FakeTransport{},
		events:    &recorder{},
	}
	h.transport.UploadStub = func(_ context.Context, _ core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
		onProgress(50)
		return corefakes.Approved("up-1", "uploads/local/1.jpg"), nil
	}
	pipeline := ingest.New(h.picker, h.processor, cfg.Ingest)
	coord := upload.NewCoordinator(h.transport, cfg.Upload)
	h.m = queue.NewManager(cfg.Queue, pipeline, coord, queue.WithObserver(h.events))
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) add(t *testing.T) core.PhotoSlot {
	t.Helper()
	slot, err := h.m.AddPhoto(context.Background())
	require.NoError(t, err)
	require.NotNil(t, slot)
	return *slot
}

func primaries(slots []core.PhotoSlot) int {
	n := 0
	for _, s := range slots {
		if s.IsPrimary {
			n++
		}
	}
	return n
}

func ids(slots []core.PhotoSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.ID
	}
	return out
}

// ── add ───────────────────────────────────────────────────────────────────────

func TestAddPhoto_FirstBecomesPrimaryAndApproves(t *testing.T) {
	h := newHarness(t, testConfig())

	slot := h.add(t)
	assert.Equal(t, core.StatusUploading, slot.Status)
	assert.True(t, slot.IsPrimary)
	assert.Equal(t, "file:///photos/rex.jpg", slot.LocalURI)

	h.m.Wait()
	got, ok := h.m.Photo(slot.ID)
	require.True(t, ok)
	assert.Equal(t, core.StatusApproved, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "up-1", got.UploadID)
	assert.Equal(t, "uploads/local/1.jpg", got.StorageKey)
	assert.Zero(t, got.RetryCount)
	assert.NotNil(t, got.ResolvedAt)
}

func TestAddPhoto_SeventhIsRejected(t *testing.T) {
	h := newHarness(t, testConfig())
	for i := 0; i < 6; i++ {
		h.add(t)
	}
	assert.False(t, h.m.CanAddMorePhotos())

	slot, err := h.m.AddPhoto(context.Background())
	assert.Nil(t, slot)
	require.ErrorIs(t, err, apperrors.ErrCapacity)
	assert.Equal(t, "Maximum 6 photos allowed", apperrors.UserMessage(err))
	assert.Equal(t, 6, h.m.Count())
	assert.Equal(t, 6, h.picker.PickImageCallCount())
}

func TestAddPhoto_ThreeConcurrentOnEmptyQueue(t *testing.T) {
	h := newHarness(t, testConfig())

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.m.AddPhoto(context.Background())
		}(i)
	}
	wg.Wait()
	h.m.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	photos := h.m.Photos()
	require.Len(t, photos, 3)
	assert.Equal(t, 1, primaries(photos))
	for _, p := range photos {
		assert.Equal(t, core.StatusApproved, p.Status)
	}
}

func TestAddPhoto_ConcurrentAddsNeverExceedCapacity(t *testing.T) {
	h := newHarness(t, testConfig())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		capacity int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.m.AddPhoto(context.Background())
			if errors.Is(err, apperrors.ErrCapacity) {
				mu.Lock()
				capacity++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	h.m.Wait()

	assert.Equal(t, 6, h.m.Count())
	assert.Equal(t, 6, capacity)
	assert.Equal(t, 1, primaries(h.m.Photos()))
}

func TestAddPhoto_CancelledIsSilent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.picker.PickImageReturns(core.PickResult{Cancelled: true}, nil)

	slot, err := h.m.AddPhoto(context.Background())
	assert.Nil(t, slot)
	assert.NoError(t, err)
	assert.Zero(t, h.m.Count())
	assert.Zero(t, h.events.count())

	// The reservation is returned.
	h.picker.PickImageReturns(core.PickResult{Asset: petAsset()}, nil)
	for i := 0; i < 6; i++ {
		h.add(t)
	}
}

func TestAddPhoto_RejectionsCreateNoSlot(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		wantErr error
		wantMsg string
	}{
		{
			name:    "permission denied",
			setup:   func(h *harness) { h.picker.RequestPermissionReturns(false, nil) },
			wantErr: apperrors.ErrPermissionDenied,
			wantMsg: "Photo library access required",
		},
		{
			name: "oversized",
			setup: func(h *harness) {
				a := petAsset()
				a.ByteSize = 10 * 1024 * 1024
				h.picker.PickImageReturns(core.PickResult{Asset: a}, nil)
			},
			wantErr: apperrors.ErrFileTooLarge,
			wantMsg: "File size too large",
		},
		{
			name: "unsupported type",
			setup: func(h *harness) {
				a := petAsset()
				a.MimeType = "image/gif"
				h.picker.PickImageReturns(core.PickResult{Asset: a}, nil)
			},
			wantErr: apperrors.ErrUnsupportedType,
			wantMsg: "Unsupported file type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			tt.setup(h)

			slot, err := h.m.AddPhoto(context.Background())
			assert.Nil(t, slot)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, apperrors.UserMessage(err))
			assert.Zero(t, h.m.Count())
			assert.Zero(t, h.transport.UploadCallCount())
		})
	}
}

func TestAddPhoto_ProcessorFailureInsertsErrorSlot(t *testing.T) {
	h := newHarness(t, testConfig())
	h.processor.ProcessReturns(core.ProcessedAsset{}, errors.New("corrupt jpeg"))

	slot := h.add(t)
	assert.Equal(t, core.StatusError, slot.Status)
	assert.Equal(t, "Failed to process image", slot.ErrorMessage)
	assert.True(t, slot.IsPrimary)
	assert.Equal(t, 1, h.m.Count())

	h.m.Wait()
	assert.Zero(t, h.transport.UploadCallCount())
}

// ── upload outcomes ───────────────────────────────────────────────────────────

func TestUpload_ApprovedAfterThirdAttempt(t *testing.T) {
	h := newHarness(t, testConfig())
	transient := &core.TransportError{Kind: core.FailureTransient, StatusCode: 503}
	h.transport.UploadReturnsOnCall(0, nil, transient)
	h.transport.UploadReturnsOnCall(1, nil, transient)
	h.transport.UploadReturnsOnCall(2, corefakes.Approved("up-3", "k3"), nil)

	slot := h.add(t)
	h.m.Wait()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusApproved, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 3, h.transport.UploadCallCount())
}

func TestUpload_ExhaustedRetriesEndInError(t *testing.T) {
	h := newHarness(t, testConfig())
	h.transport.UploadReturns(nil, &core.TransportError{Kind: core.FailureTransient, StatusCode: 502})

	slot := h.add(t)
	h.m.Wait()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusError, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "Upload failed after 3 attempts", got.ErrorMessage)
}

func TestUpload_DuplicateConflict(t *testing.T) {
	h := newHarness(t, testConfig())
	h.transport.UploadReturns(nil, core.DuplicateConflict("photo-42", 0.96))

	slot := h.add(t)
	h.m.Wait()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusDuplicate, got.Status)
	assert.Equal(t, "photo-42", got.DuplicateOfID)
	assert.InDelta(t, 0.96, got.DuplicateConfidence, 1e-9)
	assert.Equal(t, "Duplicate photo detected", got.ErrorMessage)
	assert.Empty(t, got.UploadID)
}

func TestUpload_ModerationRejected(t *testing.T) {
	h := newHarness(t, testConfig())
	h.transport.UploadReturns(&core.UploadRecord{
		UploadID:   "up-9",
		Moderation: core.Moderation{Status: core.ModerationRejected, Reason: "unsafe_content"},
	}, nil)

	slot := h.add(t)
	h.m.Wait()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusRejected, got.Status)
	assert.Equal(t, "Photo contains unsafe content", got.ErrorMessage)
	assert.Empty(t, got.UploadID)
}

func TestUpload_TimeoutEndsInError(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Timeout = 40 * time.Millisecond
	h := newHarness(t, cfg)
	h.transport.UploadStub = func(ctx context.Context, _ core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
		onProgress(30)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	slot := h.add(t)
	h.m.Wait()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusError, got.Status)
	assert.Equal(t, "Upload timed out", got.ErrorMessage)
	assert.Equal(t, 30, got.Progress)
}

func TestUpload_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, testConfig())
	release := make(chan struct{})
	h.transport.UploadStub = func(_ context.Context, _ core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
		onProgress(60)
		onProgress(20)
		onProgress(150)
		<-release
		return corefakes.Approved("up", "k"), nil
	}

	slot := h.add(t)
	require.Eventually(t, func() bool {
		got, _ := h.m.Photo(slot.ID)
		return got.Progress == 100
	}, time.Second, 5*time.Millisecond)

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusUploading, got.Status)
	close(release)
	h.m.Wait()
}

// ── primary / remove / reorder ────────────────────────────────────────────────

func TestSetPrimaryPhoto(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b, c := h.add(t), h.add(t), h.add(t)

	require.NoError(t, h.m.SetPrimaryPhoto(b.ID))
	p, ok := h.m.PrimaryPhoto()
	require.True(t, ok)
	assert.Equal(t, b.ID, p.ID)
	assert.Equal(t, 1, primaries(h.m.Photos()))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(h.m.Photos()))

	err := h.m.SetPrimaryPhoto("missing")
	require.ErrorIs(t, err, apperrors.ErrSlotNotFound)
	p, _ = h.m.PrimaryPhoto()
	assert.Equal(t, b.ID, p.ID)
}

func TestSetPrimaryPhoto_NeverTwoPrimariesVisible(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b := h.add(t), h.add(t)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := a.ID
			if i%2 == 1 {
				id = b.ID
			}
			_ = h.m.SetPrimaryPhoto(id)
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
			require.Equal(t, 1, primaries(h.m.Photos()))
		}
	}
}

func TestRemovePhoto_PromotesNext(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b, c := h.add(t), h.add(t), h.add(t)
	h.m.Wait()

	require.NoError(t, h.m.RemovePhoto(a.ID))
	photos := h.m.Photos()
	assert.Equal(t, []string{b.ID, c.ID}, ids(photos))
	p, _ := h.m.PrimaryPhoto()
	assert.Equal(t, b.ID, p.ID)
	assert.Equal(t, 1, primaries(photos))
}

func TestRemovePhoto_LastPrimaryPromotesPrevious(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b := h.add(t), h.add(t)
	require.NoError(t, h.m.SetPrimaryPhoto(b.ID))

	require.NoError(t, h.m.RemovePhoto(b.ID))
	p, ok := h.m.PrimaryPhoto()
	require.True(t, ok)
	assert.Equal(t, a.ID, p.ID)
}

func TestRemovePhoto_NonPrimaryKeepsPrimary(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b := h.add(t), h.add(t)

	require.NoError(t, h.m.RemovePhoto(b.ID))
	p, _ := h.m.PrimaryPhoto()
	assert.Equal(t, a.ID, p.ID)
	assert.Equal(t, 1, h.m.Count())
}

func TestRemovePhoto_OnlySlotLeavesNoPrimary(t *testing.T) {
	h := newHarness(t, testConfig())
	a := h.add(t)

	require.NoError(t, h.m.RemovePhoto(a.ID))
	_, ok := h.m.PrimaryPhoto()
	assert.False(t, ok)
	assert.Zero(t, h.m.Count())
	assert.True(t, h.m.CanAddMorePhotos())
}

func TestRemovePhoto_RejectPrimaryPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.RemovalPolicy = config.RemoveRejectPrimary
	h := newHarness(t, cfg)
	a, b := h.add(t), h.add(t)

	err := h.m.RemovePhoto(a.ID)
	require.ErrorIs(t, err, apperrors.ErrPrimaryRemoval)
	assert.Equal(t, "Cannot remove primary photo", apperrors.UserMessage(err))
	assert.Equal(t, []string{a.ID, b.ID}, ids(h.m.Photos()))

	require.NoError(t, h.m.RemovePhoto(b.ID))
	require.NoError(t, h.m.RemovePhoto(a.ID))
	assert.Zero(t, h.m.Count())
}

func TestRemovePhoto_UnknownID(t *testing.T) {
	h := newHarness(t, testConfig())
	h.add(t)
	require.ErrorIs(t, h.m.RemovePhoto("nope"), apperrors.ErrSlotNotFound)
	assert.Equal(t, 1, h.m.Count())
}

func TestRemovePhoto_InFlightUploadIsDiscarded(t *testing.T) {
	h := newHarness(t, testConfig())
	started := make(chan struct{})
	h.transport.UploadStub = func(ctx context.Context, _ core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
		close(started)
		<-ctx.Done()
		onProgress(99)
		return nil, ctx.Err()
	}

	slot := h.add(t)
	<-started
	require.NoError(t, h.m.RemovePhoto(slot.ID))
	h.m.Wait()

	assert.Zero(t, h.m.Count())
	_, ok := h.m.Photo(slot.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, h.transport.UploadCallCount())
}

func TestReorderPhotos(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b, c := h.add(t), h.add(t), h.add(t)

	require.NoError(t, h.m.ReorderPhotos(a.ID, 2))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(h.m.Photos()))
	p, _ := h.m.PrimaryPhoto()
	assert.Equal(t, a.ID, p.ID)

	require.NoError(t, h.m.ReorderPhotos(c.ID, 0))
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(h.m.Photos()))

	require.NoError(t, h.m.ReorderPhotos(b.ID, 1))
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(h.m.Photos()))
}

func TestReorderPhotos_Invalid(t *testing.T) {
	h := newHarness(t, testConfig())
	a, b := h.add(t), h.add(t)

	require.ErrorIs(t, h.m.ReorderPhotos(a.ID, 2), apperrors.ErrIndexOutOfRange)
	require.ErrorIs(t, h.m.ReorderPhotos(a.ID, -1), apperrors.ErrIndexOutOfRange)
	require.ErrorIs(t, h.m.ReorderPhotos("nope", 0), apperrors.ErrSlotNotFound)
	assert.Equal(t, []string{a.ID, b.ID}, ids(h.m.Photos()))
}

// ── memory / lifecycle ────────────────────────────────────────────────────────

func TestHandleMemoryWarning(t *testing.T) {
	h := newHarness(t, testConfig())
	h.transport.UploadReturnsOnCall(0, corefakes.Approved("up-a", "ka"), nil)
	h.transport.UploadReturnsOnCall(1, nil, core.DuplicateConflict("x", 1))
	a := h.add(t)
	h.m.Wait()
	b := h.add(t)
	h.m.Wait()
	require.NoError(t, h.m.SetPrimaryPhoto(b.ID))
	before := h.m.Photos()

	assert.False(t, h.m.MemoryOptimized())
	released := h.m.HandleMemoryWarning()
	assert.Equal(t, 1, released)
	assert.True(t, h.m.MemoryOptimized())

	after := h.m.Photos()
	assert.Equal(t, ids(before), ids(after))
	assert.Equal(t, []string{a.ID, b.ID}, ids(after))
	p, _ := h.m.PrimaryPhoto()
	assert.Equal(t, b.ID, p.ID)

	approved, _ := h.m.Photo(a.ID)
	assert.Nil(t, approved.Preview)
	assert.Equal(t, "up-a", approved.UploadID)
	assert.Equal(t, "ka", approved.StorageKey)
	assert.Equal(t, core.StatusApproved, approved.Status)

	dup, _ := h.m.Photo(b.ID)
	assert.NotNil(t, dup.Preview)
}

func TestClose_CancelsInFlightUploads(t *testing.T) {
	h := newHarness(t, testConfig())
	h.transport.UploadStub = func(ctx context.Context, _ core.ProcessedAsset, _ func(int)) (*core.UploadRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	slot := h.add(t)
	h.m.Close()

	got, _ := h.m.Photo(slot.ID)
	assert.Equal(t, core.StatusError, got.Status)
	assert.Equal(t, "Upload cancelled", got.ErrorMessage)

	_, err := h.m.AddPhoto(context.Background())
	require.ErrorIs(t, err, apperrors.ErrSessionClosed)
}

func TestObserverSeesTerminalSnapshot(t *testing.T) {
	h := newHarness(t, testConfig())
	slot := h.add(t)
	h.m.Wait()

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	require.NotEmpty(t, h.events.slots)
	first := h.events.slots[0]
	assert.Equal(t, slot.ID, first.ID)
	assert.Equal(t, core.StatusUploading, first.Status)
	last := h.events.slots[len(h.events.slots)-1]
	assert.Equal(t, slot.ID, last.ID)
	assert.Equal(t, core.StatusApproved, last.Status)
	assert.Equal(t, 100, last.Progress)
}

// gate blocks the observer call for one progress value until released.
type gate struct {
	recorder
	percent int
	entered chan struct{}
	release chan struct{}
}

func (g *gate) SlotChanged(s core.PhotoSlot) {
	if s.Status == core.StatusUploading && s.Progress == g.percent {
		close(g.entered)
		<-g.release
	}
	g.recorder.SlotChanged(s)
}

func TestObserver_LateProgressNeverFollowsTerminal(t *testing.T) {
	cfg := testConfig()
	obs := &gate{percent: 40, entered: make(chan struct{}), release: make(chan struct{})}
	tr := &corefakes.FakeTransport{}
	tr.UploadStub = func(_ context.Context, _ core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
		go onProgress(40)
		<-obs.entered
		return corefakes.Approved("up-1", "uploads/local/1.jpg"), nil
	}
	pipeline := ingest.New(corefakes.NewFakePicker(petAsset()), corefakes.NewFakeAssetProcessor(), cfg.Ingest)
	m := queue.NewManager(cfg.Queue, pipeline, upload.NewCoordinator(tr, cfg.Upload), queue.WithObserver(obs))
	t.Cleanup(m.Close)

	_, err := m.AddPhoto(context.Background())
	require.NoError(t, err)
	<-obs.entered
	// The terminal snapshot is captured while the progress call is still
	// inside the observer; it must wait its turn.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, obs.count())
	close(obs.release)
	m.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.slots, 3)
	assert.Equal(t, 0, obs.slots[0].Progress)
	assert.Equal(t, 40, obs.slots[1].Progress)
	last := obs.slots[2]
	assert.Equal(t, core.StatusApproved, last.Status)
	assert.Equal(t, 100, last.Progress)
}
