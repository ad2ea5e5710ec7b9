// Package transport implements the upload and moderation endpoint: an
// in-process Local endpoint backed by a StorageAdapter and an HTTP client
// for a remote service.
package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
	"github.com/openann19/petphotos/utils"
)

// Local stores uploads through a core.StorageAdapter, screens them for
// near-duplicates and runs a Moderator. Safe for concurrent use.
type Local struct {
	storage   core.StorageAdapter
	index     HashIndex
	moderator Moderator
	owner     string
	threshold int
	logger    core.Logger

	// screen serializes duplicate lookup and reservation so two concurrent
	// copies of one photo cannot both pass. It also guards claims.
	screen sync.Mutex
	// claims maps an asset's UploadKey to the attempt that currently owns
	// its reservation, so a retry replaces its own earlier attempt instead
	// of matching it.
	claims map[string]claim

	life   sync.Mutex
	closed bool
	active sync.WaitGroup
}

type claim struct {
	uploadID string
	key      core.StorageKey
	stored   bool
}

// LocalOption configures a Local transport.
type LocalOption func(*Local)

func WithIndex(idx HashIndex) LocalOption        { return func(l *Local) { l.index = idx } }
func WithModerator(m Moderator) LocalOption      { return func(l *Local) { l.moderator = m } }
func WithOwner(owner string) LocalOption         { return func(l *Local) { l.owner = owner } }
func WithThreshold(bits int) LocalOption         { return func(l *Local) { l.threshold = bits } }
func WithLocalLogger(lg core.Logger) LocalOption { return func(l *Local) { l.logger = lg } }

// NewLocal creates a Local transport writing into store.
func NewLocal(store core.StorageAdapter, opts ...LocalOption) (*Local, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "transport.local", errors.New("storage adapter is nil"))
	}
	l := &Local{
		storage:   store,
		index:     NewMemoryIndex(),
		moderator: AllowAll{},
		owner:     "local",
		threshold: 6,
		logger:    hooks.NopLogger{},
		claims:    make(map[string]claim),
	}
	for _, fn := range opts {
		fn(l)
	}
	return l, nil
}

// NewLocalFromConfig builds the dedup index and moderator described by cfg.
func NewLocalFromConfig(cfg config.Transport, store core.StorageAdapter, logger core.Logger) (*Local, error) {
	var idx HashIndex = NewMemoryIndex()
	if cfg.DedupIndex == "sqlite" {
		sq, err := OpenSQLiteIndex(cfg.DedupPath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryConfig, "transport.local.index", err)
		}
		idx = sq
	}
	var mod Moderator = AllowAll{}
	if len(cfg.DenyMarkers) > 0 {
		mod = NewDenyList(cfg.DenyMarkers...)
	}
	if logger == nil {
		logger = hooks.NopLogger{}
	}
	return NewLocal(store,
		WithIndex(idx),
		WithModerator(mod),
		WithOwner(cfg.Owner),
		WithThreshold(cfg.DedupThreshold),
		WithLocalLogger(logger),
	)
}

// Close waits for running uploads, including attempts a caller stopped
// waiting for, then releases the hash index. Later uploads fail.
func (l *Local) Close() error {
	l.life.Lock()
	if l.closed {
		l.life.Unlock()
		return nil
	}
	l.closed = true
	l.life.Unlock()

	l.active.Wait()
	return l.index.Close()
}

func (l *Local) enter() bool {
	l.life.Lock()
	defer l.life.Unlock()
	if l.closed {
		return false
	}
	l.active.Add(1)
	return true
}

// Upload implements core.Transport. Attempts sharing an UploadKey are one
// upload: a newer attempt takes over the reservation and any object of an
// older one, and the older attempt discards its work when it finishes.
func (l *Local) Upload(ctx context.Context, asset core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
	if !l.enter() {
		return nil, &core.TransportError{Kind: core.FailurePermanent, Reason: "closed", Err: apperrors.ErrSessionClosed}
	}
	defer l.active.Done()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Interrupted(apperrors.CategoryTransport, "local.upload", err)
	}
	data, err := payload(asset)
	if err != nil {
		return nil, &core.TransportError{Kind: core.FailurePermanent, Reason: "invalid_format", Err: err}
	}
	hash, err := HashBytes(data)
	if err != nil {
		return nil, &core.TransportError{Kind: core.FailurePermanent, Reason: "invalid_format", Err: err}
	}

	key, err := l.newKey()
	if err != nil {
		return nil, &core.TransportError{Kind: core.FailureTransient, Reason: "storage key", Err: err}
	}
	c := claim{uploadID: uuid.NewString(), key: key}
	if dup, err := l.reserve(ctx, asset.UploadKey, c, hash); err != nil || dup != nil {
		if dup != nil {
			return nil, dup
		}
		return nil, &core.TransportError{Kind: core.FailureTransient, Reason: "dedup index", Err: err}
	}

	body := &utils.ProgressReader{R: bytes.NewReader(data), Total: int64(len(data)), OnProgress: onProgress}
	meta := map[string]string{
		"upload_id":    c.uploadID,
		"owner":        l.owner,
		"content_type": asset.MimeType,
		"width":        strconv.Itoa(asset.Width),
		"height":       strconv.Itoa(asset.Height),
		"dhash":        strconv.FormatUint(hash, 16),
	}
	if err := l.storage.Put(ctx, key, body, meta); err != nil {
		l.release(asset.UploadKey, c)
		if ctx.Err() != nil {
			return nil, apperrors.Interrupted(apperrors.CategoryTransport, "local.put", ctx.Err())
		}
		kind := core.FailurePermanent
		if apperrors.IsRetryable(err) {
			kind = core.FailureTransient
		}
		return nil, &core.TransportError{Kind: kind, Reason: "storage", Err: err}
	}
	if err := l.abandoned(ctx, asset.UploadKey, c); err != nil {
		return nil, err
	}

	verdict, err := l.moderator.Moderate(ctx, asset)
	if err != nil {
		l.discard(asset.UploadKey, c)
		return nil, &core.TransportError{Kind: core.FailureTransient, Reason: "moderation", Err: err}
	}
	if verdict.Status == core.ModerationRejected {
		l.discard(asset.UploadKey, c)
	} else if !l.settle(asset.UploadKey, c) {
		l.discard(asset.UploadKey, c)
		return nil, apperrors.Interrupted(apperrors.CategoryTransport, "local.upload", context.Canceled)
	}

	l.logger.Debug("transport.local.stored",
		"upload_id", c.uploadID, "key", key.String(), "bytes", len(data), "moderation", string(verdict.Status))
	return &core.UploadRecord{UploadID: c.uploadID, StorageKey: key.String(), Moderation: verdict}, nil
}

// reserve looks up the nearest indexed hash and, when no duplicate is within
// threshold, records hash under c.uploadID before releasing the lock. An
// earlier attempt for the same upload key is dropped first so it can never
// be the match.
func (l *Local) reserve(ctx context.Context, uploadKey string, c claim, hash uint64) (*core.TransportError, error) {
	l.screen.Lock()
	defer l.screen.Unlock()

	if prev, ok := l.claims[uploadKey]; ok && uploadKey != "" {
		delete(l.claims, uploadKey)
		l.removeHash(prev.uploadID)
		if prev.stored {
			l.deleteObject(prev.key)
		}
		l.logger.Debug("transport.local.superseded", "upload_key", uploadKey, "upload_id", prev.uploadID)
	}

	m, ok, err := l.index.Nearest(ctx, hash)
	if err != nil {
		return nil, err
	}
	if ok && m.Distance <= l.threshold {
		l.logger.Info("transport.local.duplicate", "duplicate_of", m.UploadID, "distance", m.Distance)
		return core.DuplicateConflict(m.UploadID, Confidence(m.Distance)), nil
	}
	if err := l.index.Add(ctx, c.uploadID, hash); err != nil {
		return nil, err
	}
	if uploadKey != "" {
		l.claims[uploadKey] = c
	}
	return nil, nil
}

// abandoned reports an error when the caller gave up on this attempt or a
// newer attempt took over; the stored object is discarded in both cases.
func (l *Local) abandoned(ctx context.Context, uploadKey string, c claim) error {
	if err := ctx.Err(); err != nil {
		l.discard(uploadKey, c)
		return apperrors.Interrupted(apperrors.CategoryTransport, "local.upload", err)
	}
	l.screen.Lock()
	superseded := uploadKey != "" && l.claims[uploadKey].uploadID != c.uploadID
	l.screen.Unlock()
	if superseded {
		l.discard(uploadKey, c)
		return apperrors.Interrupted(apperrors.CategoryTransport, "local.upload", context.Canceled)
	}
	return nil
}

// settle marks the attempt's object as stored. It fails when a newer
// attempt already took over.
func (l *Local) settle(uploadKey string, c claim) bool {
	if uploadKey == "" {
		return true
	}
	l.screen.Lock()
	defer l.screen.Unlock()
	cur, ok := l.claims[uploadKey]
	if !ok || cur.uploadID != c.uploadID {
		return false
	}
	cur.stored = true
	l.claims[uploadKey] = cur
	return true
}

func (l *Local) release(uploadKey string, c claim) {
	l.screen.Lock()
	defer l.screen.Unlock()
	if cur, ok := l.claims[uploadKey]; ok && cur.uploadID == c.uploadID {
		delete(l.claims, uploadKey)
	}
	l.removeHash(c.uploadID)
}

func (l *Local) discard(uploadKey string, c claim) {
	l.release(uploadKey, c)
	l.deleteObject(c.key)
}

func (l *Local) removeHash(uploadID string) {
	if err := l.index.Remove(context.Background(), uploadID); err != nil {
		l.logger.Warn("transport.local.release", "upload_id", uploadID, "error", err.Error())
	}
}

func (l *Local) deleteObject(key core.StorageKey) {
	if err := l.storage.Delete(context.Background(), key); err != nil {
		l.logger.Warn("transport.local.discard", "key", key.String(), "error", err.Error())
	}
}

func (l *Local) newKey() (core.StorageKey, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return core.StorageKey{}, err
	}
	return core.StorageKey{
		Path: fmt.Sprintf("uploads/%s/%d-%s.jpg", l.owner, time.Now().UnixNano(), hex.EncodeToString(b[:])),
	}, nil
}

// payload returns the encoded bytes of asset, reading its processed file
// when the processor did not keep them in memory.
func payload(asset core.ProcessedAsset) ([]byte, error) {
	if len(asset.Data) > 0 {
		return asset.Data, nil
	}
	path, ok := utils.PathFromURI(asset.URI)
	if !ok || path == "" {
		return nil, fmt.Errorf("asset %q has no data", asset.Name)
	}
	return os.ReadFile(path)
}

var _ core.Transport = (*Local)(nil)
