package upload

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/data-profiler/pkg/models/api"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/services/workflow"
	"github.com/de-tools/data-profiler/pkg/store/uploads"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	FormField = "csv_file"

	DefaultMaxUploadBytes = 32 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

// FileStore is the flat directory uploads and reports are kept in.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, fs.FileInfo, error)
	Path(name string) string
}

type Handler struct {
	files          FileStore
	jobs           workflow.Controller
	maxUploadBytes int64
	pages          *template.Template
}

func NewHandler(files FileStore, jobs workflow.Controller, maxUploadBytes int64) (*Handler, error) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"bytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
		"mb":    func(n int64) int64 { return n >> 20 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return &Handler{
		files:          files,
		jobs:           jobs,
		maxUploadBytes: maxUploadBytes,
		pages:          pages,
	}, nil
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "index.html", struct{ MaxUploadBytes int64 }{h.maxUploadBytes})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		logger.Debug().Err(err).Msg("request is not a multipart form")
		http.Error(w, "No file part", http.StatusBadRequest)
		return
	}

	part, err := filePart(mr)
	if err != nil {
		if tooLarge(err) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		if !errors.Is(err, io.EOF) {
			logger.Debug().Err(err).Msg("malformed multipart body")
		}
		http.Error(w, "No file part", http.StatusBadRequest)
		return
	}
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		http.Error(w, "No selected file", http.StatusBadRequest)
		return
	}
	if !uploads.AllowedFile(filename) {
		http.Error(w, "Invalid file type", http.StatusBadRequest)
		return
	}
	name := uploads.SecureFilename(filename)
	if name == "" {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	size, err := h.files.Save(ctx, name, part)
	if err != nil {
		if tooLarge(err) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Error().Err(err).Str("filename", name).Msg("failed to save upload")
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}
	logger.Info().
		Str("filename", name).
		Str("path", h.files.Path(name)).
		Int64("size", size).
		Msg("file saved")

	htmlName, jsonName := uploads.ReportNames(name)
	job, err := h.jobs.Submit(ctx, domain.Upload{
		Filename:   name,
		SourcePath: h.files.Path(name),
		HTMLPath:   h.files.Path(htmlName),
		JSONPath:   h.files.Path(jsonName),
		Size:       size,
	})
	if err != nil {
		logger.Error().Err(err).Str("filename", name).Msg("failed to schedule report")
		if errors.Is(err, workflow.ErrShuttingDown) {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Failed to schedule report", http.StatusInternalServerError)
		return
	}

	result := api.UploadResult{
		JobID:      job.ID,
		Filename:   name,
		HTMLReport: job.HTMLPath,
		JSONReport: job.JSONPath,
		HTMLURL:    downloadURL(htmlName),
		JSONURL:    downloadURL(jsonName),
		StatusURL:  "/api/v1/jobs/" + job.ID,
		SizeBytes:  size,
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error().Err(err).Msg("failed to encode upload result")
		}
		return
	}

	h.renderPage(w, r, "result.html", result)
}

// Download serves a file from the upload directory as an attachment. Reports
// that are still being generated are simply not found yet.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	f, info, err := h.files.Open(name)
	if err != nil {
		if !errors.Is(err, uploads.ErrNotFound) {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("filename", name).Msg("failed to open download")
		}
		http.Error(w, fmt.Sprintf("File %s not found", name), http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": info.Name(),
	}))
	if ct := mime.TypeByExtension(filepath.Ext(info.Name())); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("page", name).Msg("failed to render page")
	}
}

// filePart advances mr to the first upload field part that carries a filename
// parameter, even an empty one. Parts without it are plain form values and
// are skipped. io.EOF means there is no such part.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() != FormField {
			continue
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			continue
		}
		if _, ok := params["filename"]; ok {
			return part, nil
		}
	}
}

func tooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}

func downloadURL(name string) string {
	return "/download/" + url.PathEscape(name)
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}
