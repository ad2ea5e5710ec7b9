// Package picker provides a filesystem-backed asset picker.
package picker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/webp"

	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/utils"
)

const sniffLen = 512

// FilePicker hands out a scripted list of files, one per pick. An empty
// entry or an exhausted list behaves like the user cancelling.
type FilePicker struct {
	mu     sync.Mutex
	paths  []string
	next   int
	denied bool
}

// NewFilePicker returns a picker over paths.
func NewFilePicker(paths ...string) *FilePicker {
	return &FilePicker{paths: append([]string(nil), paths...)}
}

// Deny makes every subsequent permission request fail.
func (p *FilePicker) Deny() {
	p.mu.Lock()
	p.denied = true
	p.mu.Unlock()
}

func (p *FilePicker) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.denied, nil
}

func (p *FilePicker) PickImage(ctx context.Context) (core.PickResult, error) {
	if err := ctx.Err(); err != nil {
		return core.PickResult{}, err
	}
	p.mu.Lock()
	if p.next >= len(p.paths) {
		p.mu.Unlock()
		return core.PickResult{Cancelled: true}, nil
	}
	path := p.paths[p.next]
	p.next++
	p.mu.Unlock()

	if path == "" {
		return core.PickResult{Cancelled: true}, nil
	}
	asset, err := Describe(path)
	if err != nil {
		return core.PickResult{}, err
	}
	return core.PickResult{Asset: asset}, nil
}

// Describe builds an asset descriptor for the file at path. The MIME type
// comes from the file's magic bytes, not its extension. Undecodable headers
// leave the dimensions at zero.
func Describe(path string) (core.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Asset{}, apperrors.Wrap(apperrors.CategoryInput, "picker.open", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.Asset{}, apperrors.Wrap(apperrors.CategoryInput, "picker.stat", err)
	}
	if info.IsDir() {
		return core.Asset{}, apperrors.New(apperrors.CategoryInput, "picker.stat", fmt.Errorf("%s is a directory", path))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return core.Asset{}, apperrors.Wrap(apperrors.CategoryInput, "picker.read", err)
	}
	head = head[:n]

	mime := http.DetectContentType(head)
	if format := utils.DetectFormat(head); format != "unknown" {
		mime = utils.MimeForFormat(format)
	}

	asset := core.Asset{
		URI:      utils.FileURI(path),
		Name:     filepath.Base(path),
		ByteSize: info.Size(),
		MimeType: mime,
	}

	// DecodeConfig only needs the header; stitch the sniffed prefix back on.
	cfg, _, err := image.DecodeConfig(io.MultiReader(bytes.NewReader(head), f))
	if err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}
	return asset, nil
}

var _ core.Picker = (*FilePicker)(nil)
