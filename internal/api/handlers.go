package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/registry"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from the URL wildcard. Encoded slashes
// (Active%2FStatus-X.md) are accepted.
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List registered documents
//	@Tags			documents
//	@Produce		json
//	@Param			category	query		string	false	"Filter by category"	Enums(exempt, timestamped)
//	@Param			location	query		string	false	"Filter by location"	Enums(active, archive, project_instructions, module_docs)
//	@Param			sort		query		string	false	"Sort field"			Enums(path, created_at, updated_at)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, total, err := h.svc.List(r.Context(), registry.Filter{
		Category: q.Get("category"),
		Location: q.Get("location"),
		Sort:     q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, err, "list documents")
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a document with its classification and violations
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeError(w, err, "get document", "path", path)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a named, stamped document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Type == "" || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("type and description are required"))
		return
	}
	d, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err, "create document", "type", req.Type)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDocument handles PUT /api/documents/*.
//
//	@Summary		Update an exempt document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string					true	"Document path"
//	@Param			If-Match	header		string					false	"SHA-256 checksum of the current file"
//	@Param			body		body		UpdateDocumentRequest	true	"Updated content"
//	@Success		200			{object}	DocumentDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	d, err := h.svc.Update(r.Context(), path, []byte(req.Content), req.Note, ifMatch)
	if err != nil {
		writeError(w, err, "update document", "path", path)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// Supersede handles POST /api/supersede/*.
//
//	@Summary		Supersede an instance document and archive the predecessor
//	@Tags			lifecycle
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Document path"
//	@Param			body	body		SupersedeRequest	true	"Successor content"
//	@Success		201		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/supersede/{path} [post]
func (h *Handler) Supersede(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req SupersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.Supersede(r.Context(), path, []byte(req.Content), req.Note)
	if err != nil {
		writeError(w, err, "supersede document", "path", path)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Archive handles POST /api/archive/*.
//
//	@Summary		Archive one instance document
//	@Tags			lifecycle
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	lifecycle.Move
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archive/{path} [post]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	mv, err := h.svc.Archive(r.Context(), path)
	if err != nil {
		writeError(w, err, "archive document", "path", path)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

// Sweep handles POST /api/archive.
//
//	@Summary		Archive every document that is due
//	@Tags			lifecycle
//	@Produce		json
//	@Param			dry_run	query		bool	false	"Only plan the moves"
//	@Success		200		{object}	MovesResponse
//	@Security		BearerAuth
//	@Router			/archive [post]
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	moves, err := h.svc.Sweep(r.Context(), dryRun)
	if err != nil {
		writeError(w, err, "archive sweep")
		return
	}
	if moves == nil {
		moves = []lifecycle.Move{}
	}
	writeJSON(w, http.StatusOK, MovesResponse{Moves: moves, DryRun: dryRun})
}

// Classify handles GET /api/classify.
//
//	@Summary		Classify a filename
//	@Tags			policy
//	@Produce		json
//	@Param			name	query		string	true	"Filename"
//	@Success		200		{object}	ClassifyResponse
//	@Security		BearerAuth
//	@Router			/classify [get]
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'name' is required"))
		return
	}
	cl := h.svc.Classify(name)
	resp := ClassifyResponse{
		Filename:    cl.Filename,
		Category:    cl.Category,
		Rule:        cl.Rule,
		Conditional: cl.Conditional,
		Valid:       cl.Valid(),
	}
	if !cl.CreatedAt.IsZero() {
		resp.CreatedAt = &cl.CreatedAt
	}
	if cl.Err != nil {
		resp.Error = cl.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SuggestName handles GET /api/names.
//
//	@Summary		Suggest a free conforming document name
//	@Tags			policy
//	@Produce		json
//	@Param			type		query		string	true	"Document type"	example(Status)
//	@Param			description	query		string	true	"Short description"
//	@Param			dir			query		string	false	"Target directory"
//	@Success		200			{object}	NameResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/names [get]
func (h *Handler) SuggestName(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.svc.SuggestName(q.Get("type"), q.Get("description"), q.Get("dir"))
	if err != nil {
		writeError(w, err, "suggest name")
		return
	}
	writeJSON(w, http.StatusOK, NameResponse{Path: p})
}

// Violations handles GET /api/violations.
//
//	@Summary		List open policy violations
//	@Tags			policy
//	@Produce		json
//	@Success		200	{object}	ViolationsResponse
//	@Security		BearerAuth
//	@Router			/violations [get]
func (h *Handler) Violations(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.Violations(r.Context())
	if err != nil {
		writeError(w, err, "violations")
		return
	}
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, err, "summary")
		return
	}
	writeJSON(w, http.StatusOK, ViolationsResponse{Violations: vs, Summary: sum})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", "query", q)
		return
	}
	if results == nil {
		results = []registry.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Audit handles GET /api/audit.
//
//	@Summary		Lifecycle audit trail, newest first
//	@Tags			audit
//	@Produce		json
//	@Param			path	query		string	false	"Only events touching this path"
//	@Param			limit	query		int		false	"Max events"
//	@Success		200		{object}	AuditResponse
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := h.svc.Events(r.Context(), q.Get("path"), limit)
	if err != nil {
		writeError(w, err, "audit")
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{Events: events})
}
