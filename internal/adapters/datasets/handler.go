// Package datasets exposes report templates over HTTP and runs asynchronous
// exports into the artifact store.
package datasets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"accessionreport/internal/core"
	"accessionreport/pkg/datasetapi"
)

// Catalog exposes dataset templates for HTTP handlers.
type Catalog interface {
	DatasetTemplates() []datasetapi.TemplateDescriptor
	ResolveDatasetTemplate(slug string) (core.DatasetTemplate, bool)
}

// Handler provides HTTP access to dataset templates and exports.
type Handler struct {
	Catalog Catalog
	Exports ExportScheduler
	// DefaultRepoID scopes requests that do not name a repository.
	DefaultRepoID int64
	Logger        *zap.Logger
}

// NewHandler constructs a dataset HTTP handler.
func NewHandler(c Catalog) *Handler {
	return &Handler{Catalog: c, Logger: zap.NewNop()}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeError(w, http.StatusInternalServerError, "dataset catalog not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/api/v1/datasets/templates":
		writeJSON(w, http.StatusOK, map[string]any{"templates": h.Catalog.DatasetTemplates()})
	case strings.HasPrefix(path, "/api/v1/datasets/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	case strings.HasPrefix(path, "/api/v1/datasets/templates/"):
		h.handleTemplate(w, r, strings.TrimPrefix(path, "/api/v1/datasets/templates/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	if len(segments) < 3 || len(segments) > 4 {
		writeError(w, http.StatusNotFound, "dataset endpoint not found")
		return
	}
	slug := datasetapi.SlugFor(segments[0], segments[1], segments[2])
	template, ok := h.Catalog.ResolveDatasetTemplate(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "dataset template not found")
		return
	}

	if len(segments) == 3 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"template": template.Descriptor()})
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch segments[3] {
	case "validate":
		h.handleValidate(w, r, template)
	case "run":
		h.handleRun(w, r, template)
	default:
		writeError(w, http.StatusNotFound, "dataset endpoint not found")
	}
}

type scopePayload struct {
	Requestor string   `json:"requestor"`
	RepoID    int64    `json:"repo_id"`
	Roles     []string `json:"roles"`
}

func (h *Handler) scope(p scopePayload) (datasetapi.Scope, error) {
	repoID := p.RepoID
	if repoID == 0 {
		repoID = h.DefaultRepoID
	}
	if repoID <= 0 {
		return datasetapi.Scope{}, errors.New("scope.repo_id required")
	}
	return datasetapi.Scope{Requestor: p.Requestor, RepoID: repoID, Roles: p.Roles}, nil
}

type validationRequest struct {
	Parameters map[string]any `json:"parameters"`
}

type validationResponse struct {
	Template   datasetapi.TemplateDescriptor `json:"template"`
	Valid      bool                          `json:"valid"`
	Parameters map[string]any                `json:"parameters"`
	Errors     []datasetapi.ParameterError   `json:"errors,omitempty"`
}

func decodeBody(r *http.Request, into any) error {
	err := json.NewDecoder(r.Body).Decode(into)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request, template core.DatasetTemplate) {
	var req validationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid validation request payload")
		return
	}
	cleaned, errs := template.ValidateParameters(req.Parameters)
	writeJSON(w, http.StatusOK, validationResponse{
		Template:   template.Descriptor(),
		Valid:      len(errs) == 0,
		Parameters: cleaned,
		Errors:     errs,
	})
}

type runRequest struct {
	Parameters map[string]any `json:"parameters"`
	Scope      scopePayload   `json:"scope"`
}

type runResponse struct {
	Template   datasetapi.TemplateDescriptor `json:"template"`
	Scope      datasetapi.Scope              `json:"scope"`
	Parameters map[string]any                `json:"parameters"`
	Result     datasetapi.RunResult          `json:"result"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request, template core.DatasetTemplate) {
	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run request payload")
		return
	}
	scope, err := h.scope(req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := negotiateFormat(r, template.OutputFormats)
	if format == "" {
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
		return
	}

	result, paramErrs, err := template.Run(r.Context(), req.Parameters, scope, format)
	if err != nil {
		h.logger().Error("dataset run failed", zap.String("template", template.Descriptor().Slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(paramErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Template:   template.Descriptor(),
			Valid:      false,
			Parameters: req.Parameters,
			Errors:     paramErrs,
		})
		return
	}

	descriptor := template.Descriptor()
	columns := resultColumns(descriptor, result)
	switch format {
	case datasetapi.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName(descriptor, format)))
		if err := writeCSV(w, columns, result.Rows); err != nil {
			h.logger().Warn("csv stream interrupted", zap.Error(err))
		}
	case datasetapi.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := writeHTML(w, descriptor.Title, columns, result.Rows); err != nil {
			h.logger().Warn("html render interrupted", zap.Error(err))
		}
	default:
		writeJSON(w, http.StatusOK, runResponse{
			Template:   descriptor,
			Scope:      scope,
			Parameters: req.Parameters,
			Result:     result,
		})
	}
}

func attachmentName(descriptor datasetapi.TemplateDescriptor, format datasetapi.Format) string {
	return fmt.Sprintf("%s-%s.%s", descriptor.Key, time.Now().UTC().Format("20060102T150405Z"), format)
}

type exportRequest struct {
	Template struct {
		Slug    string `json:"slug"`
		Plugin  string `json:"plugin"`
		Key     string `json:"key"`
		Version string `json:"version"`
	} `json:"template"`
	Parameters  map[string]any `json:"parameters"`
	Formats     []string       `json:"formats"`
	Scope       scopePayload   `json:"scope"`
	RequestedBy string         `json:"requested_by"`
	Reason      string         `json:"reason"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/datasets/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleExportCreate(w, r)
		return
	}
	id, ok := strings.CutPrefix(path, "/api/v1/datasets/exports/")
	if !ok || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, found := h.Exports.GetExport(id)
	if !found {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}

	slug := strings.TrimSpace(req.Template.Slug)
	if slug == "" {
		if req.Template.Plugin == "" || req.Template.Key == "" || req.Template.Version == "" {
			writeError(w, http.StatusBadRequest, "template slug or plugin/key/version required")
			return
		}
		slug = datasetapi.SlugFor(req.Template.Plugin, req.Template.Key, req.Template.Version)
	}

	formats := make([]datasetapi.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, ok := parseFormat(f)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported export format")
			return
		}
		formats = append(formats, format)
	}

	scope, err := h.scope(req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		TemplateSlug: slug,
		Parameters:   req.Parameters,
		Formats:      formats,
		Scope:        scope,
		RequestedBy:  firstNonEmpty(req.RequestedBy, req.Scope.Requestor),
		Reason:       req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func parseFormat(raw string) (datasetapi.Format, bool) {
	switch f := datasetapi.Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case datasetapi.FormatJSON, datasetapi.FormatCSV, datasetapi.FormatHTML:
		return f, true
	default:
		return "", false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// negotiateFormat prefers ?format= over the Accept header and falls back to
// JSON. It returns "" when the template cannot produce the format.
func negotiateFormat(r *http.Request, supported []datasetapi.Format) datasetapi.Format {
	wanted := r.URL.Query().Get("format")
	if wanted == "" {
		accept := r.Header.Get("Accept")
		switch {
		case strings.Contains(accept, "text/csv"):
			wanted = string(datasetapi.FormatCSV)
		case strings.Contains(accept, "text/html"):
			wanted = string(datasetapi.FormatHTML)
		default:
			wanted = string(datasetapi.FormatJSON)
		}
	}
	format, ok := parseFormat(wanted)
	if !ok {
		return ""
	}
	for _, candidate := range supported {
		if candidate == format {
			return format
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
