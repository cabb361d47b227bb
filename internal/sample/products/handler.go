// Package products is a small products API used as a target for the
// contract test fixtures and as the sample document served by the docs host.
package products

import (
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/theroutercompany/apidocs/pkg/host/problem"
	"github.com/theroutercompany/apidocs/pkg/host/server/middleware"
)

// OpenAPI is the document describing the API.
//
//go:embed openapi.yaml
var OpenAPI []byte

const maxNameLength = 100

type createRequest struct {
	Name *string `json:"name"`
}

// Handler serves the products API.
type Handler struct {
	store *Store
}

// NewHandler returns a handler backed by store (a fresh store when nil).
func NewHandler(store *Store) *Handler {
	if store == nil {
		store = NewStore()
	}
	return &Handler{store: store}
}

// Routes mounts the API under /api/products.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestMetadata())
	r.Use(chimiddleware.Recoverer)
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, http.StatusNotFound, "Not Found", "", middleware.TraceIDFromContext(r.Context()), r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", middleware.TraceIDFromContext(r.Context()), r.URL.Path)
	})
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.TraceIDFromContext(r.Context())

	var req createRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		detail := "request body must be a JSON object"
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		problem.Write(w, http.StatusBadRequest, "Bad Request", detail, traceID, r.URL.Path)
		return
	}

	if errs := validate(req); len(errs) > 0 {
		problem.WriteValidation(w, errs, traceID, r.URL.Path)
		return
	}

	product := h.store.Create(strings.TrimSpace(*req.Name))
	w.Header().Set("Location", "/api/products/"+product.ID)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		problem.Write(w, http.StatusNotFound, "Not Found", "product "+id+" does not exist", middleware.TraceIDFromContext(r.Context()), r.URL.Path)
		return
	}
	product, ok := h.store.Get(id)
	if !ok {
		problem.Write(w, http.StatusNotFound, "Not Found", "product "+id+" does not exist", middleware.TraceIDFromContext(r.Context()), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

func validate(req createRequest) map[string][]string {
	errs := map[string][]string{}
	switch {
	case req.Name == nil || strings.TrimSpace(*req.Name) == "":
		errs["name"] = append(errs["name"], "The name field is required.")
	case len(*req.Name) > maxNameLength:
		errs["name"] = append(errs["name"], "The name field must be at most 100 characters.")
	}
	return errs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
