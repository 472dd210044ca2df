package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"accessionreport/internal/blob"
	"accessionreport/pkg/datasetapi"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact captures a stored dataset artifact.
type ExportArtifact struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Format      datasetapi.Format `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ExportRecord tracks an export request and resulting artifacts.
type ExportRecord struct {
	ID          string                        `json:"id"`
	Template    datasetapi.TemplateDescriptor `json:"template"`
	Scope       datasetapi.Scope              `json:"scope"`
	Parameters  map[string]any                `json:"parameters"`
	Formats     []datasetapi.Format           `json:"formats"`
	Status      ExportStatus                  `json:"status"`
	Error       string                        `json:"error,omitempty"`
	Artifacts   []ExportArtifact              `json:"artifacts,omitempty"`
	RequestedBy string                        `json:"requested_by"`
	Reason      string                        `json:"reason,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
}

// Done reports whether the export reached a terminal state.
func (r ExportRecord) Done() bool {
	return r.Status == ExportStatusSucceeded || r.Status == ExportStatusFailed
}

// ExportInput represents an enqueue request for the worker.
type ExportInput struct {
	TemplateSlug string
	Parameters   map[string]any
	Formats      []datasetapi.Format
	Scope        datasetapi.Scope
	RequestedBy  string
	Reason       string
}

// ExportScheduler queues dataset export requests and exposes status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// ObjectStore persists export artifacts. Put must not overwrite.
type ObjectStore interface {
	Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (ExportArtifact, error)
	Get(ctx context.Context, key string) (ExportArtifact, []byte, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string           `json:"id"`
	Action     string           `json:"action"`
	Actor      string           `json:"actor"`
	Template   string           `json:"template"`
	ExportID   string           `json:"export_id"`
	Status     ExportStatus     `json:"status"`
	Scope      datasetapi.Scope `json:"scope"`
	Reason     string           `json:"reason,omitempty"`
	Note       string           `json:"note,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

const auditAction = "dataset_export"

// Worker executes dataset exports asynchronously.
type Worker struct {
	catalog Catalog
	store   ObjectStore
	audit   AuditLogger
	logger  *zap.Logger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize bounds the number of pending exports.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// NewWorker constructs an export worker. A nil store keeps artifacts
// unpersisted; a nil audit logger drops audit entries.
func NewWorker(c Catalog, store ObjectStore, audit AuditLogger, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		catalog: c,
		store:   store,
		audit:   audit,
		logger:  zap.NewNop(),
		queue:   make(chan exportTask, 32),
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.catalog == nil {
		return ExportRecord{}, errors.New("export catalog not configured")
	}
	slug := strings.TrimSpace(input.TemplateSlug)
	if slug == "" {
		return ExportRecord{}, errors.New("template slug required")
	}
	template, ok := w.catalog.ResolveDatasetTemplate(slug)
	if !ok {
		return ExportRecord{}, fmt.Errorf("dataset template %s not found", slug)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []datasetapi.Format{datasetapi.FormatJSON, datasetapi.FormatCSV}
	}
	unique := make([]datasetapi.Format, 0, len(formats))
	seen := make(map[datasetapi.Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if !template.SupportsFormat(format) {
			return ExportRecord{}, fmt.Errorf("format %s not supported by template", format)
		}
		unique = append(unique, format)
		seen[format] = struct{}{}
	}

	now := time.Now().UTC()
	record := ExportRecord{
		ID:          uuid.NewString(),
		Template:    template.Descriptor(),
		Scope:       input.Scope,
		Parameters:  cloneMap(input.Parameters),
		Formats:     unique,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	input.TemplateSlug = slug

	w.mu.Lock()
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	w.record(ctx, snapshot, "")

	select {
	case w.queue <- exportTask{id: record.ID, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		snapshot.Status = ExportStatusFailed
		w.record(ctx, snapshot, "export queue full")
		return ExportRecord{}, errors.New("export queue full")
	}
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	template, ok := w.catalog.ResolveDatasetTemplate(task.input.TemplateSlug)
	if !ok {
		w.fail(task.id, fmt.Sprintf("template %s missing", task.input.TemplateSlug))
		return
	}
	w.transition(task.id, func(r *ExportRecord) { r.Status = ExportStatusRunning }, "")

	result, paramErrs, err := template.Run(w.ctx, task.input.Parameters, task.input.Scope, datasetapi.FormatJSON)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("dataset run failed: %v", err))
		return
	}
	if len(paramErrs) > 0 {
		w.fail(task.id, fmt.Sprintf("parameter validation failed: %s", describeParamErrors(paramErrs)))
		return
	}

	record, _ := w.GetExport(task.id)
	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.materialize(task.id, format, template.Descriptor(), result)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.transition(task.id, func(r *ExportRecord) {
		r.Status = ExportStatusSucceeded
		r.Error = ""
		r.Artifacts = artifacts
	}, "")
	w.logger.Info("export completed",
		zap.String("export_id", task.id),
		zap.String("template", task.input.TemplateSlug),
		zap.Int("rows", len(result.Rows)),
		zap.Int("artifacts", len(artifacts)))
}

func (w *Worker) fail(id, reason string) {
	w.transition(id, func(r *ExportRecord) {
		r.Status = ExportStatusFailed
		r.Error = reason
	}, reason)
	w.logger.Warn("export failed", zap.String("export_id", id), zap.String("reason", reason))
}

func (w *Worker) transition(id string, mutate func(*ExportRecord), note string) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	mutate(record)
	record.UpdatedAt = now
	if record.Done() {
		record.CompletedAt = &now
	}
	snapshot := record.copy()
	w.mu.Unlock()
	w.record(w.ctx, snapshot, note)
}

func (w *Worker) record(ctx context.Context, r ExportRecord, note string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     auditAction,
		Actor:      r.RequestedBy,
		Template:   r.Template.Slug,
		ExportID:   r.ID,
		Status:     r.Status,
		Scope:      r.Scope,
		Reason:     r.Reason,
		Note:       note,
		OccurredAt: r.UpdatedAt,
	})
}

var contentTypes = map[datasetapi.Format]string{
	datasetapi.FormatJSON: "application/json",
	datasetapi.FormatCSV:  "text/csv",
	datasetapi.FormatHTML: "text/html; charset=utf-8",
}

func (w *Worker) materialize(exportID string, format datasetapi.Format, descriptor datasetapi.TemplateDescriptor, result datasetapi.RunResult) (ExportArtifact, error) {
	payload, err := Render(format, descriptor, result)
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	artifact := ExportArtifact{
		ID:          uuid.NewString(),
		Format:      format,
		ContentType: contentTypes[format],
		SizeBytes:   int64(len(payload)),
		Metadata: map[string]string{
			"export_id": exportID,
			"template":  descriptor.Slug,
			"rows":      fmt.Sprint(len(result.Rows)),
		},
		CreatedAt: time.Now().UTC(),
	}
	artifact.Key = fmt.Sprintf("exports/%s/%s.%s", exportID, artifact.ID, format)
	if w.store == nil {
		return artifact, nil
	}
	stored, err := w.store.Put(w.ctx, artifact.Key, payload, artifact.ContentType, artifact.Metadata)
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("store artifact failed: %w", err)
	}
	artifact.URL = stored.URL
	if stored.SizeBytes > 0 {
		artifact.SizeBytes = stored.SizeBytes
	}
	return artifact, nil
}

// Render encodes result in format. JSON carries the whole result; CSV and
// HTML carry the rows in column order.
func Render(format datasetapi.Format, descriptor datasetapi.TemplateDescriptor, result datasetapi.RunResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	columns := resultColumns(descriptor, result)
	switch format {
	case datasetapi.FormatJSON:
		if err := json.NewEncoder(buf).Encode(result); err != nil {
			return nil, err
		}
	case datasetapi.FormatCSV:
		if err := writeCSV(buf, columns, result.Rows); err != nil {
			return nil, err
		}
	case datasetapi.FormatHTML:
		if err := writeHTML(buf, descriptor.Title, columns, result.Rows); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
	return buf.Bytes(), nil
}

func describeParamErrors(errs []datasetapi.ParameterError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Name + ": " + e.Message
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Parameters = cloneMap(r.Parameters)
	dup.Formats = append([]datasetapi.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	return dup
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// BlobObjectStore stores artifacts in a blob.Store and attaches a download
// URL when the backend can sign one.
type BlobObjectStore struct {
	Store     blob.Store
	URLExpiry time.Duration
}

// NewBlobObjectStore wraps store.
func NewBlobObjectStore(store blob.Store) *BlobObjectStore {
	return &BlobObjectStore{Store: store, URLExpiry: time.Hour}
}

func (s *BlobObjectStore) Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (ExportArtifact, error) {
	info, err := s.Store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return ExportArtifact{}, err
	}
	artifact := artifactFromInfo(info)
	url, err := s.Store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: s.URLExpiry})
	switch {
	case err == nil:
		artifact.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return ExportArtifact{}, fmt.Errorf("sign %s: %w", key, err)
	}
	return artifact, nil
}

func (s *BlobObjectStore) Get(ctx context.Context, key string) (ExportArtifact, []byte, error) {
	info, rc, err := s.Store.Get(ctx, key)
	if err != nil {
		return ExportArtifact{}, nil, err
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return ExportArtifact{}, nil, fmt.Errorf("read %s: %w", key, err)
	}
	return artifactFromInfo(info), payload, nil
}

func artifactFromInfo(info blob.Info) ExportArtifact {
	return ExportArtifact{
		ID:          info.Key,
		Key:         info.Key,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		URL:         info.URL,
		Metadata:    info.Metadata,
		CreatedAt:   info.LastModified,
	}
}

// ZapAuditLogger writes audit entries to a structured logger.
type ZapAuditLogger struct {
	Logger *zap.Logger
}

func (l ZapAuditLogger) Record(_ context.Context, entry AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("audit",
		zap.String("action", entry.Action),
		zap.String("audit_id", entry.ID),
		zap.String("export_id", entry.ExportID),
		zap.String("actor", entry.Actor),
		zap.String("template", entry.Template),
		zap.String("status", string(entry.Status)),
		zap.Int64("repo_id", entry.Scope.RepoID),
		zap.String("note", entry.Note),
		zap.Time("occurred_at", entry.OccurredAt))
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
