package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetguard/internal/core"
	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/store"
	"github.com/JonMunkholm/sheetguard/internal/web/templates"
)

const (
	// formOverhead is the room left for multipart framing and the schema
	// fields on top of the file size limit.
	formOverhead = 1 << 20

	// multipartMemory is how much of a form is held in memory before spilling
	// file parts to disk.
	multipartMemory = 8 << 20

	// maxSchemaSize bounds schema documents posted to the API.
	maxSchemaSize = 1 << 20
)

// handleHealth reports liveness and validation slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"validations": s.service.LimiterStatus(),
	})
}

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListSchemas(r.Context())
	if err != nil && !errors.Is(err, core.ErrNoStore) {
		slog.Warn("list schemas for form", "error", err)
	}
	render(w, r, http.StatusOK, templates.Index(entries, s.service.MaxFileSize()))
}

// handleValidateForm validates a browser upload and renders the result page.
func (s *Server) handleValidateForm(w http.ResponseWriter, r *http.Request) {
	res, err := s.validateRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render(w, r, http.StatusOK, templates.Result(res))
}

// handleAPIValidate validates an upload and returns the Result as JSON. A file
// that fails validation is still a 200; only unusable requests are errors.
func (s *Server) handleAPIValidate(w http.ResponseWriter, r *http.Request) {
	res, err := s.validateRequest(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// upload is a parsed validation form: the file plus either a stored schema id
// or an inline schema document.
type upload struct {
	file     multipart.File
	header   *multipart.FileHeader
	schemaID string
	inline   string
}

func (s *Server) validateRequest(w http.ResponseWriter, r *http.Request) (core.Result, error) {
	up, err := s.parseUpload(w, r)
	if err != nil {
		return core.Result{}, err
	}
	defer up.file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	if up.schemaID != "" {
		return s.service.ValidateUpload(ctx, up.schemaID, up.header.Filename, up.file, up.header.Size)
	}
	if strings.TrimSpace(up.inline) == "" {
		return core.Result{}, core.ErrMissingSchema
	}
	// ParseYAML reads JSON too, so either syntax can be pasted.
	sch, err := schema.ParseYAML([]byte(up.inline))
	if err != nil {
		return core.Result{}, err
	}
	return s.service.ValidateReader(ctx, sch, up.header.Filename, up.file, up.header.Size)
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if limit := s.service.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMissingFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, core.ErrMissingFile
	}
	return &upload{
		file:     file,
		header:   header,
		schemaID: strings.TrimSpace(r.FormValue("schema")),
		inline:   r.FormValue("schema_json"),
	}, nil
}

// handleListSchemas returns the stored schema entries.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListSchemas(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleSaveSchema stores the request body under ?name=. The document must
// parse as a schema.
func (s *Server) handleSaveSchema(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSchemaSize))
	if err != nil {
		respondError(w, r, err)
		return
	}

	entry, err := s.service.SaveSchema(r.Context(), r.URL.Query().Get("name"), data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleGetSchema returns a stored document as written.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetSchemaDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	contentType := "application/json"
	if doc.IsYAML() {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Last-Modified", doc.UpdatedAt.UTC().Format(http.TimeFormat))
	if _, err := w.Write(doc.Data); err != nil {
		slog.Warn("write schema document", "error", err)
	}
}

// handleDeleteSchema removes a stored document.
func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSchema(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// render writes an HTML component with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}
