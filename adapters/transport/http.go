package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
	"github.com/openann19/petphotos/utils"
)

// UploadPath is the endpoint path appended to the base URL.
const UploadPath = "/api/uploads/photos"

const uploadChunk = 16 * 1024

// HTTP posts photos to a remote upload service as multipart/form-data.
type HTTP struct {
	endpoint string
	owner    string
	client   *http.Client
	logger   core.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPOption { return func(h *HTTP) { h.client = c } }

// WithHTTPLogger attaches a structured logger.
func WithHTTPLogger(l core.Logger) HTTPOption { return func(h *HTTP) { h.logger = l } }

// NewHTTP creates a client for the service at baseURL.
func NewHTTP(cfg config.Transport, opts ...HTTPOption) (*HTTP, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, apperrors.New(apperrors.CategoryConfig, "transport.http", errors.New("base url is empty"))
	}
	h := &HTTP{
		endpoint: base + UploadPath,
		owner:    cfg.Owner,
		client:   http.DefaultClient,
		logger:   hooks.NopLogger{},
	}
	for _, fn := range opts {
		fn(h)
	}
	return h, nil
}

type moderationBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type successBody struct {
	UploadID   string         `json:"uploadId"`
	StorageKey string         `json:"storageKey"`
	Moderation moderationBody `json:"moderation"`
}

type failureFields struct {
	Reason      string  `json:"reason,omitempty"`
	DuplicateOf string  `json:"duplicateOf,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// failureBody accepts the details either at the top level or inside a
// "data" envelope; the envelope wins when both are present.
type failureBody struct {
	Error string `json:"error"`
	failureFields
	Data *failureFields `json:"data,omitempty"`
}

func (f failureBody) details() failureFields {
	out := f.failureFields
	if f.Data == nil {
		return out
	}
	if f.Data.Reason != "" {
		out.Reason = f.Data.Reason
	}
	if f.Data.DuplicateOf != "" {
		out.DuplicateOf = f.Data.DuplicateOf
	}
	if f.Data.Confidence != 0 {
		out.Confidence = f.Data.Confidence
	}
	return out
}

// duplicateReasons are the conflict reasons that mean "already stored".
var duplicateReasons = map[string]bool{
	"duplicate":       true,
	"exact_duplicate": true,
	"near_duplicate":  true,
}

// Upload implements core.Transport. The request body is streamed so progress
// follows the bytes actually consumed by the connection.
func (h *HTTP) Upload(ctx context.Context, asset core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
	data, err := payload(asset)
	if err != nil {
		return nil, &core.TransportError{Kind: core.FailurePermanent, Reason: "invalid_format", Err: err}
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(h.writeForm(mw, asset, data, onProgress))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, pr)
	if err != nil {
		return nil, &core.TransportError{Kind: core.FailurePermanent, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if asset.UploadKey != "" {
		req.Header.Set("Idempotency-Key", asset.UploadKey)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &core.TransportError{Kind: core.FailureTransient, Reason: "network", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &core.TransportError{Kind: core.FailureTransient, StatusCode: resp.StatusCode, Reason: "read response", Err: err}
	}
	h.logger.Debug("transport.http.response",
		"status", resp.StatusCode, "bytes", len(data), "elapsed_ms", time.Since(start).Milliseconds())

	return classify(resp.StatusCode, body)
}

func (h *HTTP) writeForm(mw *multipart.Writer, asset core.ProcessedAsset, data []byte, onProgress func(int)) error {
	fields := [][2]string{
		{"owner", h.owner},
		{"width", strconv.Itoa(asset.Width)},
		{"height", strconv.Itoa(asset.Height)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, asset.Name))
	hdr.Set("Content-Type", asset.MimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	src := &utils.ProgressReader{R: bytes.NewReader(data), Total: int64(len(data)), OnProgress: onProgress}
	if _, err := io.Copy(&utils.ChunkedWriter{W: part, ChunkSize: uploadChunk}, src); err != nil {
		return err
	}
	return mw.Close()
}

// classify maps a response to a record or a structured failure.
func classify(status int, body []byte) (*core.UploadRecord, error) {
	switch {
	case status >= 200 && status < 300:
		var ok successBody
		if err := json.Unmarshal(body, &ok); err != nil {
			return nil, &core.TransportError{Kind: core.FailurePermanent, StatusCode: status, Reason: "malformed response", Err: err}
		}
		if ok.UploadID == "" {
			return nil, &core.TransportError{Kind: core.FailurePermanent, StatusCode: status, Reason: "missing uploadId"}
		}
		mod := core.Moderation{Status: core.ModerationStatus(ok.Moderation.Status), Reason: ok.Moderation.Reason}
		if mod.Status == "" {
			mod.Status = core.ModerationApproved
		}
		return &core.UploadRecord{UploadID: ok.UploadID, StorageKey: ok.StorageKey, Moderation: mod}, nil

	case status == http.StatusConflict:
		f, err := decodeFailure(body)
		if err != nil {
			return nil, &core.TransportError{Kind: core.FailurePermanent, StatusCode: status, Reason: "malformed conflict", Err: err}
		}
		d := f.details()
		reason := d.Reason
		if reason == "" {
			reason = f.Error
		}
		if !duplicateReasons[strings.ToLower(reason)] || d.DuplicateOf == "" {
			return nil, &core.TransportError{Kind: core.FailurePermanent, StatusCode: status, Reason: nonEmpty(reason, "conflict")}
		}
		return nil, core.DuplicateConflict(d.DuplicateOf, d.Confidence)

	case status == http.StatusUnprocessableEntity:
		f, _ := decodeFailure(body)
		return nil, &core.TransportError{Kind: core.FailureRejected, StatusCode: status, Reason: f.details().Reason}

	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return nil, &core.TransportError{Kind: core.FailureTransient, StatusCode: status, Reason: http.StatusText(status)}
	}

	f, _ := decodeFailure(body)
	return nil, &core.TransportError{Kind: core.FailurePermanent, StatusCode: status, Reason: nonEmpty(f.details().Reason, f.Error)}
}

// decodeFailure parses an error body. An empty body is not an error.
func decodeFailure(body []byte) (failureBody, error) {
	var f failureBody
	if len(bytes.TrimSpace(body)) == 0 {
		return f, nil
	}
	err := json.Unmarshal(body, &f)
	return f, err
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

var _ core.Transport = (*HTTP)(nil)
