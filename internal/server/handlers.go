package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/maauso/spectroview/internal/analysis"
)

const (
	// UploadField is the multipart form field carrying the audio file.
	UploadField = "audio_file"
	// DefaultMaxMemory is the part of a multipart body kept in memory;
	// the rest spills to temporary files.
	DefaultMaxMemory = 32 << 20
)

// Messages shown on the page when error detail is enabled.
const (
	msgUnsupportedInput = "The uploaded file could not be read as audio."
	msgRenderFailed     = "The spectrogram could not be rendered."
)

// Processor turns an upload into a rendered spectrogram.
type Processor interface {
	Process(ctx context.Context, up analysis.Upload) (*analysis.Result, error)
}

// Handlers contains the HTTP handlers for the upload page.
type Handlers struct {
	processor       Processor
	logger          *slog.Logger
	showErrorDetail bool
	maxMemory       int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithErrorDetail adds a one-line failure message to the page when
// processing fails.
func WithErrorDetail(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.showErrorDetail = enabled
	}
}

// WithMaxMemory sets how much of a multipart body is buffered in memory.
func WithMaxMemory(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxMemory = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(processor Processor, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		processor: processor,
		logger:    logger,
		maxMemory: DefaultMaxMemory,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Index handles GET / requests.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writePage(w, h.logger, PageData{})
}

// Upload handles POST /upload requests. It always answers with the page:
// with the image on success and without it otherwise.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(r)
	if !ok {
		writePage(w, h.logger, PageData{})
		return
	}
	defer file.Close()

	h.logger.Info("upload received",
		slog.String("filename", header.Filename),
		slog.String("size", humanize.Bytes(uint64(max(header.Size, 0)))),
	)

	res, err := h.processor.Process(r.Context(), analysis.Upload{
		Filename: header.Filename,
		Body:     file,
		Size:     header.Size,
	})
	if err != nil {
		h.logProcessError(header.Filename, err)
		writePage(w, h.logger, PageData{Message: h.failureMessage(err)})
		return
	}

	writePage(w, h.logger, PageData{ImageURL: res.ImageURL})
}

// logProcessError logs a processing failure once. Undecodable uploads are
// the client's problem and only warrant a warning.
func (h *Handlers) logProcessError(filename string, err error) {
	attrs := []any{
		slog.String("filename", filename),
		slog.String("error", err.Error()),
	}
	if errors.Is(err, analysis.ErrUnsupportedInput) {
		h.logger.Warn("upload is not readable audio", attrs...)
		return
	}
	h.logger.Error("failed to process upload", attrs...)
}

// formFile returns the uploaded audio part, or ok=false when the request
// carries none. Temporary files of the parsed form are removed by net/http
// once the handler returns.
func (h *Handlers) formFile(r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			h.logger.Warn("failed to parse multipart form", slog.String("error", err.Error()))
		}
		return nil, nil, false
	}
	file, header, err := r.FormFile(UploadField)
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			h.logger.Warn("failed to read upload field", slog.String("error", err.Error()))
		}
		return nil, nil, false
	}
	return file, header, true
}

func (h *Handlers) failureMessage(err error) string {
	if !h.showErrorDetail {
		return ""
	}
	if errors.Is(err, analysis.ErrUnsupportedInput) {
		return msgUnsupportedInput
	}
	return msgRenderFailed
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
