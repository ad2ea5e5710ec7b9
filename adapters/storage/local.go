// Package storage provides StorageAdapter implementations for uploaded
// photos.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
)

const metaSuffix = ".meta.json"

// Local stores objects under a root directory. Writes land in a temp file
// and are renamed into place, so readers never see a partial object.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.init", err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

// NewLocalFromConfig builds a Local adapter from the storage section.
func NewLocalFromConfig(c config.LocalConfig) (*Local, error) {
	return NewLocal(c.RootDir, os.FileMode(c.Permissions))
}

// Root returns the directory objects are stored under.
func (l *Local) Root() string { return l.rootDir }

// resolve maps key to a path inside rootDir and refuses keys that would
// escape it.
func (l *Local) resolve(op string, key core.StorageKey) (string, error) {
	rel := filepath.Join(filepath.FromSlash(key.Bucket), filepath.FromSlash(key.Path))
	if key.Path == "" || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", apperrors.New(apperrors.CategoryStorage, op, fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(l.rootDir, rel), nil
}

func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Interrupted(apperrors.CategoryStorage, "local.put", err)
	}
	path, err := l.resolve("local.put", key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.mkdir", err)
	}
	if err := l.writeAtomic(path, r); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.write", err)
	}
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
		}
		if err := l.writeAtomic(path+metaSuffix, strings.NewReader(string(data))); err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
		}
	}
	return nil
}

func (l *Local) writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(l.permissions); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (l *Local) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Interrupted(apperrors.CategoryStorage, "local.get", err)
	}
	path, err := l.resolve("local.get", key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.get", fmt.Errorf("key not found: %v", key))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get.open", err)
	}
	return f, nil
}

// Meta returns the metadata stored alongside key, or nil when none was
// written.
func (l *Local) Meta(ctx context.Context, key core.StorageKey) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Interrupted(apperrors.CategoryStorage, "local.meta", err)
	}
	path, err := l.resolve("local.meta", key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path + metaSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta.read", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta.decode", err)
	}
	return meta, nil
}

func (l *Local) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Interrupted(apperrors.CategoryStorage, "local.delete", err)
	}
	path, err := l.resolve("local.delete", key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	_ = os.Remove(path + metaSuffix)
	return nil
}

func (l *Local) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Interrupted(apperrors.CategoryStorage, "local.exists", err)
	}
	path, err := l.resolve("local.exists", key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists.stat", err)
}

var _ core.StorageAdapter = (*Local)(nil)
