// Package server serves the single-page upload and question form.
//
// Routes:
//
//	GET  /              the page; ?document=<id> selects an uploaded document
//	POST /upload        multipart form: file (PDF), api_key (optional)
//	POST /ask           form: document, query
//	POST /api/ask       JSON {"document": "...", "query": "..."}
//	GET  /healthz       liveness
//
// Uploaded files are written to a temporary file, ingested, and removed. Ingested
// documents stay in memory until the server holds more than ServerConfig.MaxDocuments, at
// which point the oldest is dropped. Assistants are cached per API key, at most
// ServerConfig.MaxAssistants of them; evicting one closes it and drops its documents. Raw
// errors never reach the page; they are logged.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rickchristie/docagent/assistant"
	"github.com/rickchristie/docagent/config"
	"github.com/rickchristie/docagent/models"
)

// Page messages.
const (
	WarningAPIKey     = "Please enter your valid HuggingfaceHub API key!"
	WarningNoDocument = "Please upload a valid pdf file!"
	WarningNoQuery    = "Please enter a query."
	ErrorIngestion    = "The document could not be processed. Try again with another file."
	ErrorUpload       = "The upload could not be read. Is the file too large?"

	// DefaultQuery pre-fills the query box.
	DefaultQuery = "Who is Elon Musk?"
)

const (
	multipartMemory = 8 << 20
	shutdownTimeout = 5 * time.Second
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// AssistantFactory builds an Assistant for cfg. The server calls it once per distinct API
// key, again only after that key's assistant was evicted.
type AssistantFactory func(ctx context.Context, cfg config.Config) (*assistant.Assistant, error)

// Server holds the uploaded documents and the assistants that ingested them.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	factory AssistantFactory

	assistants *lru.Cache[string, *assistantEntry] // by API key, "" for the configured one
	builds     singleflight.Group

	mu        sync.RWMutex
	documents map[string]*document
	order     []string
}

type assistantEntry struct {
	key       string
	assistant *assistant.Assistant
	ingested  atomic.Bool
}

type document struct {
	ID      string
	Name    string
	Title   string
	session *assistant.Session
	owner   *assistantEntry
}

type pageData struct {
	Document *document
	Query    string
	Answer   string
	Warnings []string
	Error    string
	NeedsKey bool
}

// New creates a Server. Assistants are built with assistant.FromConfig unless replaced with
// WithAssistantFactory.
func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		documents: make(map[string]*document),
	}
	// NewWithEvict only fails for a non-positive size.
	s.assistants, _ = lru.NewWithEvict(max(cfg.Server.MaxAssistants, 1), s.evictAssistant)
	s.factory = func(ctx context.Context, cfg config.Config) (*assistant.Assistant, error) {
		return assistant.FromConfig(ctx, cfg, s.logger)
	}
	return s
}

// WithAssistantFactory replaces how assistants are built.
func (s *Server) WithAssistantFactory(factory AssistantFactory) *Server {
	s.factory = factory
	return s
}

// Handler returns the HTTP handler with request logging and, when origins are configured,
// CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /api/ask", s.handleAPIAsk)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		})
		handler = c.Handler(handler)
	}
	return s.logRequests(handler)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting http server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases every assistant the server built, together with their documents.
// Failures are logged by the eviction hook.
func (s *Server) Close() error {
	s.assistants.Purge()
	return nil
}

// ---
// Handlers

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.page(s.document(r.URL.Query().Get("document")))
	data.Query = DefaultQuery
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.logger.Warn("reading upload", slog.Any("error", err))
		data := s.page(nil)
		data.Error = ErrorUpload
		s.render(w, http.StatusBadRequest, data)
		return
	}

	apiKey := strings.TrimSpace(r.FormValue("api_key"))
	if !s.acceptsKey(apiKey) {
		data := s.page(nil)
		data.Warnings = []string{WarningAPIKey}
		s.render(w, http.StatusBadRequest, data)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil || !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		if err == nil {
			file.Close() //nolint:errcheck
		}
		data := s.page(nil)
		data.Warnings = []string{WarningNoDocument}
		s.render(w, http.StatusBadRequest, data)
		return
	}
	defer file.Close() //nolint:errcheck

	entry, err := s.assistantFor(r.Context(), apiKey)
	if err != nil {
		s.logger.Error("building assistant", slog.Any("error", err))
		data := s.page(nil)
		data.Error = ErrorIngestion
		s.render(w, http.StatusInternalServerError, data)
		return
	}

	session, err := ingestUpload(r.Context(), entry.assistant, file)
	if err != nil {
		s.logger.Error("ingesting upload",
			slog.String("filename", header.Filename), slog.Any("error", err))
		if !entry.ingested.Load() {
			s.forget(entry)
		}
		data := s.page(nil)
		data.Error = ErrorIngestion
		s.render(w, http.StatusUnprocessableEntity, data)
		return
	}
	entry.ingested.Store(true)

	doc, err := s.addDocument(entry, header.Filename, session)
	if err != nil {
		s.logger.Error("storing document",
			slog.String("filename", header.Filename), slog.Any("error", err))
		data := s.page(nil)
		data.Error = ErrorIngestion
		s.render(w, http.StatusServiceUnavailable, data)
		return
	}
	http.Redirect(w, r, "/?document="+doc.ID, http.StatusSeeOther)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	doc := s.document(r.FormValue("document"))
	data := s.page(doc)
	data.Query = strings.TrimSpace(r.FormValue("query"))

	switch {
	case doc == nil:
	case data.Query == "":
		data.Warnings = append(data.Warnings, WarningNoQuery)
	default:
		data.Answer = doc.session.Ask(r.Context(), data.Query).Answer
	}
	s.render(w, http.StatusOK, data)
}

type apiAskRequest struct {
	Document string `json:"document"`
	Query    string `json:"query"`
}

type apiAskResponse struct {
	Answer     string `json:"answer,omitempty"`
	OK         bool   `json:"ok"`
	Iterations int    `json:"iterations,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	var req apiAskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiAskResponse{Error: "invalid JSON body"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, apiAskResponse{Error: "query is required"})
		return
	}
	doc := s.document(req.Document)
	if doc == nil {
		writeJSON(w, http.StatusNotFound, apiAskResponse{Error: "unknown document"})
		return
	}

	resp := doc.session.Ask(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, apiAskResponse{
		Answer:     resp.Answer,
		OK:         resp.OK(),
		Iterations: resp.Iterations,
	})
}

// ---
// Documents and assistants

// acceptsKey reports whether an upload with apiKey can be ingested. An empty key falls back
// to the configured credentials.
func (s *Server) acceptsKey(apiKey string) bool {
	if apiKey == "" {
		return len(s.cfg.MissingCredentials()) == 0
	}
	if s.cfg.Agent.Model.Provider == models.ProviderHuggingFace {
		return strings.HasPrefix(apiKey, "hf_")
	}
	return true
}

// assistantFor returns the cached assistant for apiKey, building it on a miss. Concurrent
// misses for one key share a single build, and no lock is held while building.
func (s *Server) assistantFor(ctx context.Context, apiKey string) (*assistantEntry, error) {
	if entry, ok := s.assistants.Get(apiKey); ok {
		return entry, nil
	}
	v, err, _ := s.builds.Do(apiKey, func() (any, error) {
		if entry, ok := s.assistants.Get(apiKey); ok {
			return entry, nil
		}
		cfg := s.cfg
		if apiKey != "" {
			cfg = cfg.WithToken(cfg.Agent.Model.Provider, apiKey)
		}
		a, err := s.factory(context.WithoutCancel(ctx), cfg)
		if err != nil {
			return nil, err
		}
		entry := &assistantEntry{key: apiKey, assistant: a}
		s.assistants.Add(apiKey, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*assistantEntry), nil
}

// forget evicts entry if it is still the cached assistant for its key.
func (s *Server) forget(entry *assistantEntry) {
	if cached, ok := s.assistants.Peek(entry.key); ok && cached == entry {
		s.assistants.Remove(entry.key)
	}
}

// evictAssistant runs after the cache dropped entry. It must not be called with s.mu held.
func (s *Server) evictAssistant(_ string, entry *assistantEntry) {
	if err := s.release(entry); err != nil {
		s.logger.Warn("closing assistant", slog.Any("error", err))
	}
}

// release drops entry's documents and closes their sessions and the assistant.
func (s *Server) release(entry *assistantEntry) error {
	var dropped []*document
	s.mu.Lock()
	kept := s.order[:0]
	for _, id := range s.order {
		doc := s.documents[id]
		if doc.owner == entry {
			dropped = append(dropped, doc)
			delete(s.documents, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	s.mu.Unlock()

	var errs []error
	for _, doc := range dropped {
		if err := doc.session.Close(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
		}
	}
	if err := entry.assistant.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("assistant released", slog.Int("documents", len(dropped)))
	return errors.Join(errs...)
}

func ingestUpload(ctx context.Context, a *assistant.Assistant, upload io.Reader) (*assistant.Session, error) {
	tmp, err := os.CreateTemp("", "docagent-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, upload); err != nil {
		tmp.Close() //nolint:errcheck
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return a.Ingest(ctx, tmp.Name())
}

// addDocument stores session under a new id. It fails when owner was evicted while the
// upload was being ingested.
func (s *Server) addDocument(owner *assistantEntry, name string, session *assistant.Session) (*document, error) {
	doc := &document{
		ID:      uuid.NewString(),
		Name:    name,
		Title:   session.Title(),
		session: session,
		owner:   owner,
	}

	var evicted []*document
	s.mu.Lock()
	if cached, ok := s.assistants.Peek(owner.key); !ok || cached != owner {
		s.mu.Unlock()
		return nil, errors.New("assistant was evicted during ingestion")
	}
	s.documents[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	for len(s.order) > s.cfg.Server.MaxDocuments {
		oldest := s.order[0]
		s.order = s.order[1:]
		evicted = append(evicted, s.documents[oldest])
		delete(s.documents, oldest)
	}
	s.mu.Unlock()

	for _, old := range evicted {
		if err := old.session.Close(context.Background()); err != nil {
			s.logger.Warn("dropping document", slog.String("document", old.ID), slog.Any("error", err))
		}
	}
	s.logger.Info("document ready",
		slog.String("document", doc.ID), slog.String("filename", name), slog.String("title", doc.Title))
	return doc, nil
}

func (s *Server) document(id string) *document {
	if id == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents[id]
}

// ---
// Rendering

func (s *Server) page(doc *document) pageData {
	data := pageData{
		Document: doc,
		NeedsKey: len(s.cfg.MissingCredentials()) > 0,
	}
	if doc == nil {
		if data.NeedsKey {
			data.Warnings = append(data.Warnings, WarningAPIKey)
		}
		data.Warnings = append(data.Warnings, WarningNoDocument)
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("rendering page", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
