package transport_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/petphotos/adapters/storage"
	"github.com/openann19/petphotos/adapters/transport"
	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/upload"
)

// gradient returns a PNG whose brightness rises left to right, or falls when
// descending is set. The two directions hash as far apart as possible.
func gradient(t *testing.T, descending bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 256, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 256; x++ {
			v := uint8(x)
			if descending {
				v = uint8(255 - x)
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func asset(name string, data []byte) core.ProcessedAsset {
	return core.ProcessedAsset{
		URI:      "mem://" + name,
		Name:     name,
		Width:    256,
		Height:   64,
		ByteSize: int64(len(data)),
		MimeType: "image/png",
		Data:     data,
	}
}

func newLocal(t *testing.T, opts ...transport.LocalOption) (*transport.Local, *storage.Local) {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir(), 0o644)
	require.NoError(t, err)
	opts = append([]transport.LocalOption{transport.WithOwner("pet-42")}, opts...)
	l, err := transport.NewLocal(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, store
}

// ── Hashing ───────────────────────────────────────────────────────────────────

func TestDHash_Gradients(t *testing.T) {
	up, err := transport.HashBytes(gradient(t, false))
	require.NoError(t, err)
	down, err := transport.HashBytes(gradient(t, true))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), up)
	assert.Equal(t, ^uint64(0), down)
	assert.Equal(t, 64, transport.Distance(up, down))
	assert.Equal(t, 0.0, transport.Confidence(64))
	assert.Equal(t, 1.0, transport.Confidence(0))
	assert.InDelta(t, 0.9375, transport.Confidence(4), 1e-9)
}

func TestHashBytes_Invalid(t *testing.T) {
	_, err := transport.HashBytes([]byte("not an image"))
	assert.Error(t, err)
}

// ── Local transport ───────────────────────────────────────────────────────────

func TestLocal_Approved(t *testing.T) {
	l, store := newLocal(t)
	data := gradient(t, false)

	var progress []int
	rec, err := l.Upload(context.Background(), asset("rex.png", data), func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.NotEmpty(t, rec.UploadID)
	assert.True(t, strings.HasPrefix(rec.StorageKey, "uploads/pet-42/"), rec.StorageKey)
	assert.True(t, strings.HasSuffix(rec.StorageKey, ".jpg"), rec.StorageKey)
	assert.Equal(t, core.ModerationApproved, rec.Moderation.Status)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])

	key := core.StorageKey{Path: rec.StorageKey}
	ok, err := store.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	meta, err := store.Meta(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, rec.UploadID, meta["upload_id"])
	assert.Equal(t, "pet-42", meta["owner"])
}

func TestLocal_Duplicate(t *testing.T) {
	l, _ := newLocal(t)
	data := gradient(t, false)

	first, err := l.Upload(context.Background(), asset("a.png", data), nil)
	require.NoError(t, err)

	_, err = l.Upload(context.Background(), asset("b.png", data), nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailureDuplicate, te.Kind)
	assert.Equal(t, 409, te.StatusCode)
	assert.Equal(t, first.UploadID, te.DuplicateOf)
	assert.Equal(t, 1.0, te.Confidence)
	assert.False(t, te.Retryable())

	_, err = l.Upload(context.Background(), asset("c.png", gradient(t, true)), nil)
	assert.NoError(t, err, "a visually different photo is not a duplicate")
}

func TestLocal_ThresholdZeroStillCatchesExactCopies(t *testing.T) {
	l, _ := newLocal(t, transport.WithThreshold(0))
	data := gradient(t, true)

	_, err := l.Upload(context.Background(), asset("a.png", data), nil)
	require.NoError(t, err)
	_, err = l.Upload(context.Background(), asset("a-copy.png", data), nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailureDuplicate, te.Kind)
}

func TestLocal_ConcurrentCopiesOnlyOneWins(t *testing.T) {
	l, _ := newLocal(t)
	data := gradient(t, false)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Upload(context.Background(), asset("same.png", data), nil)
			mu.Lock()
			defer mu.Unlock()
			var te *core.TransportError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &te) && te.Kind == core.FailureDuplicate:
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dups)
}

func TestLocal_DenyListRejects(t *testing.T) {
	l, store := newLocal(t, transport.WithModerator(transport.NewDenyList("nsfw", "empty_room=no_pet_detected")))
	data := gradient(t, false)

	rec, err := l.Upload(context.Background(), asset("Empty_Room.png", data), nil)
	require.NoError(t, err)
	assert.Equal(t, core.ModerationRejected, rec.Moderation.Status)
	assert.Equal(t, "no_pet_detected", rec.Moderation.Reason)

	exists, err := store.Exists(context.Background(), core.StorageKey{Path: rec.StorageKey})
	require.NoError(t, err)
	assert.False(t, exists, "rejected uploads are not kept")

	rec, err = l.Upload(context.Background(), asset("nsfw-dog.png", data), nil)
	require.NoError(t, err, "rejected photos are not duplicate candidates")
	assert.Equal(t, transport.DefaultRejectReason, rec.Moderation.Reason)

	rec, err = l.Upload(context.Background(), asset("dog.png", data), nil)
	require.NoError(t, err)
	assert.Equal(t, core.ModerationApproved, rec.Moderation.Status)
}

func TestLocal_InvalidPayload(t *testing.T) {
	l, _ := newLocal(t)

	_, err := l.Upload(context.Background(), asset("junk.png", []byte("junk")), nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailurePermanent, te.Kind)

	_, err = l.Upload(context.Background(), core.ProcessedAsset{Name: "nothing", URI: "mem://x"}, nil)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailurePermanent, te.Kind)
}

type flakyStorage struct {
	core.StorageAdapter
	err error
}

func (f *flakyStorage) Put(_ context.Context, _ core.StorageKey, r io.Reader, _ map[string]string) error {
	_, _ = io.Copy(io.Discard, r)
	return f.err
}

func TestLocal_StorageFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.FailureKind
	}{
		{"transient", apperrors.Transient("put", errors.New("disk busy")), core.FailureTransient},
		{"permanent", apperrors.New(apperrors.CategoryStorage, "put", errors.New("read-only")), core.FailurePermanent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := transport.NewLocal(&flakyStorage{err: tc.err})
			require.NoError(t, err)
			data := gradient(t, false)

			_, err = l.Upload(context.Background(), asset("a.png", data), nil)
			var te *core.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tc.want, te.Kind)

			// The failed attempt released its reservation.
			_, err = l.Upload(context.Background(), asset("a.png", data), nil)
			require.ErrorAs(t, err, &te)
			assert.NotEqual(t, core.FailureDuplicate, te.Kind)
		})
	}
}

func TestLocal_Cancelled(t *testing.T) {
	l, _ := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Upload(ctx, asset("a.png", gradient(t, false)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// slowStore delays its first Put past any short attempt deadline and then
// finishes the write regardless of the caller's context.
type slowStore struct {
	*storage.Local
	delay time.Duration
	calls atomic.Int32
}

func (s *slowStore) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if s.calls.Add(1) == 1 {
		time.Sleep(s.delay)
		return s.Local.Put(context.Background(), key, r, meta)
	}
	return s.Local.Put(ctx, key, r, meta)
}

type openTarget struct{}

func (openTarget) StartAttempt(n int) (uint64, bool) { return uint64(n), true }
func (openTarget) ReportProgress(uint64, int)        {}

func storedPhotos(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".jpg") {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

func TestLocal_RetryAfterAttemptTimeoutIsNotItsOwnDuplicate(t *testing.T) {
	inner, err := storage.NewLocal(t.TempDir(), 0o644)
	require.NoError(t, err)
	store := &slowStore{Local: inner, delay: 200 * time.Millisecond}
	l, err := transport.NewLocal(store, transport.WithOwner("pet-42"))
	require.NoError(t, err)

	cfg := config.Default().Upload
	cfg.Timeout = 5 * time.Second
	cfg.AttemptTimeout = 50 * time.Millisecond
	cfg.Retry = config.Retry{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 1}
	coord := upload.NewCoordinator(l, cfg)

	data := gradient(t, false)
	res := coord.Upload(context.Background(), asset("rex.png", data), openTarget{})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Record)
	assert.Equal(t, core.ModerationApproved, res.Record.Moderation.Status)
	assert.Equal(t, 2, res.Attempts)

	// A copy without the slot's key is a duplicate of the surviving upload.
	_, err = l.Upload(context.Background(), asset("copy.png", data), nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailureDuplicate, te.Kind)
	assert.Equal(t, res.Record.UploadID, te.DuplicateOf)

	// Close waits for the abandoned first attempt, which discards its copy.
	require.NoError(t, l.Close())
	photos := storedPhotos(t, inner.Root())
	require.Len(t, photos, 1)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(photos[0]), res.Record.StorageKey), photos[0])
}

func TestLocal_SameUploadKeyReplacesEarlierAttempt(t *testing.T) {
	l, store := newLocal(t)
	a := asset("rex.png", gradient(t, false))
	a.UploadKey = "slot-1"

	first, err := l.Upload(context.Background(), a, nil)
	require.NoError(t, err)
	second, err := l.Upload(context.Background(), a, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.UploadID, second.UploadID)

	ok, err := store.Exists(context.Background(), core.StorageKey{Path: first.StorageKey})
	require.NoError(t, err)
	assert.False(t, ok, "superseded object is removed")
	ok, err = store.Exists(context.Background(), core.StorageKey{Path: second.StorageKey})
	require.NoError(t, err)
	assert.True(t, ok)

	// A different slot carrying the same photo is a duplicate of the survivor.
	other := a
	other.UploadKey = "slot-2"
	_, err = l.Upload(context.Background(), other, nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailureDuplicate, te.Kind)
	assert.Equal(t, second.UploadID, te.DuplicateOf)
}

func TestLocal_CancelledAfterPutDiscards(t *testing.T) {
	inner, err := storage.NewLocal(t.TempDir(), 0o644)
	require.NoError(t, err)
	store := &slowStore{Local: inner, delay: 50 * time.Millisecond}
	l, err := transport.NewLocal(store)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	data := gradient(t, false)
	_, err = l.Upload(ctx, asset("a.png", data), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperrors.ErrContextCanceled)
	assert.Empty(t, storedPhotos(t, inner.Root()))

	// The reservation went with it.
	rec, err := l.Upload(context.Background(), asset("a.png", data), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.UploadID)
	require.NoError(t, l.Close())
}

func TestLocal_CloseRejectsLaterUploads(t *testing.T) {
	l, _ := newLocal(t)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err := l.Upload(context.Background(), asset("a.png", gradient(t, false)), nil)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, core.FailurePermanent, te.Kind)
}

func TestNewLocal_NilStorage(t *testing.T) {
	_, err := transport.NewLocal(nil)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestNewLocalFromConfig_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().Transport
	cfg.DedupIndex = "sqlite"
	cfg.DedupPath = filepath.Join(dir, "index", "hashes.db")
	data := gradient(t, true)

	store, err := storage.NewLocal(filepath.Join(dir, "objects"), 0o644)
	require.NoError(t, err)

	l, err := transport.NewLocalFromConfig(cfg, store, nil)
	require.NoError(t, err)
	first, err := l.Upload(context.Background(), asset("a.png", data), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// A new session sees hashes recorded by the previous one.
	l, err = transport.NewLocalFromConfig(cfg, store, nil)
	require.NoError(t, err)
	defer l.Close()
	_, err = l.Upload(context.Background(), asset("b.png", data), nil)
	var te *core.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, first.UploadID, te.DuplicateOf)
}

// ── Indexes ───────────────────────────────────────────────────────────────────

func TestIndexes(t *testing.T) {
	sq, err := transport.OpenSQLiteIndex(filepath.Join(t.TempDir(), "hashes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	indexes := map[string]transport.HashIndex{
		"memory": transport.NewMemoryIndex(),
		"sqlite": sq,
	}
	for name, idx := range indexes {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := idx.Nearest(ctx, 0)
			require.NoError(t, err)
			assert.False(t, ok, "empty index has no nearest entry")

			require.NoError(t, idx.Add(ctx, "high", ^uint64(0)))
			require.NoError(t, idx.Add(ctx, "low", 0x0F))

			m, ok, err := idx.Nearest(ctx, ^uint64(0)^1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "high", m.UploadID)
			assert.Equal(t, ^uint64(0), m.Hash)
			assert.Equal(t, 1, m.Distance)

			require.NoError(t, idx.Remove(ctx, "high"))
			m, ok, err = idx.Nearest(ctx, ^uint64(0))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "low", m.UploadID)
		})
	}
}
