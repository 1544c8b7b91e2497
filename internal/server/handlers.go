package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/concept"
	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
	"github.com/starchart-viz/starchart/pkg/pipeline"
	"github.com/starchart-viz/starchart/pkg/store"
)

// handler holds the dependencies shared by all endpoints.
type handler struct {
	store     store.Store
	runner    *pipeline.Runner
	clusterer cluster.Clusterer
	model     string
	count     int
	logger    *log.Logger
}

// =============================================================================
// Endpoints
// =============================================================================

// health reports liveness.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createDocument runs the full pipeline on a posted extraction and persists
// the resulting document.
func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	extraction, err := concept.ReadExtraction(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.runner.Execute(r.Context(), pipeline.Options{
		Extraction:         extraction,
		ConstellationCount: h.count,
		ClusterModel:       h.model,
		Clusterer:          h.clusterer,
		Logger:             h.logger,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	doc := store.New(result.Snapshot, result.Constellations)
	if err := h.store.Put(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// listDocuments returns summaries of all stored documents, newest first.
func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []store.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// getDocument returns one stored document in full.
func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// deleteDocument removes a stored document.
func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getScene computes a scene for a stored document. The detail query parameter
// selects a tier filter; subset names an explicit comma-separated concept set
// and overrides detail.
func (h *handler) getScene(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, err)
		return
	}

	opts := pipeline.Options{
		Detail: r.URL.Query().Get("detail"),
		Subset: splitParam(r.URL.Query().Get("subset")),
		Logger: h.logger,
	}

	scores := concept.Classify(doc.Snapshot.Entities, concept.DefaultWeights)
	scene, err := h.runner.Layout(r.Context(), doc.Snapshot, scores, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// getTree builds a hierarchical drill-down view of the document's graph,
// rooted at the "root" query parameter or the most connected concept.
func (h *handler) getTree(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, err)
		return
	}

	tree := layout.BuildTree(doc.Snapshot, r.URL.Query().Get("root"))
	if tree == nil {
		tree = &layout.TreeNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

// getConstellations returns the stored constellations for a document.
func (h *handler) getConstellations(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	groups := doc.Constellations
	if groups == nil {
		groups = []cluster.Constellation{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// =============================================================================
// Helpers
// =============================================================================

// splitParam splits a comma-separated query value, dropping empty items.
func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps pipeline error codes to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)

	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		// Mask internal details
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: msg})
}

// statusFor maps an error code to its HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidEntityLabel,
		errors.ErrCodeInvalidRecord,
		errors.ErrCodeInvalidDetailLevel,
		errors.ErrCodeInvalidSnapshot:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound,
		errors.ErrCodeDocumentNotFound,
		errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeClusteringUnavailable,
		errors.ErrCodeNetwork:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
