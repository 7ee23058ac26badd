package api

import (
	"log/slog"
	"net/http"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/service"
)

// CategoryHandler serves the shared category list.
type CategoryHandler struct {
	categories service.CategoryService
	logger     *slog.Logger
}

// NewCategoryHandler creates a CategoryHandler.
func NewCategoryHandler(categories service.CategoryService, logger *slog.Logger) *CategoryHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CategoryHandler")
	}
	return &CategoryHandler{
		categories: categories,
		logger:     logger.With(slog.String("component", "category_handler")),
	}
}

// List handles GET /categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.categories.ListCategories(r.Context(), page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list categories")
		return
	}

	results := make([]CategoryResponse, 0, len(res.Categories))
	for _, c := range res.Categories {
		results = append(results, categoryToResponse(c))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newPage(r, res.Total, res.Page, res.HasNext(), results))
}

// Create handles POST /categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.categories.CreateCategory(r.Context(), req.Name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, categoryToResponse(c))
}

// Get handles GET /categories/{id}.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, id, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.categories.GetCategory(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, categoryToResponse(c))
}

// Update handles PUT and PATCH /categories/{id}. Name is the only writable
// field, so both methods rename.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, id, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req CategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.categories.RenameCategory(r.Context(), id, req.Name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, categoryToResponse(c))
}

// Delete handles DELETE /categories/{id}.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, id, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.categories.DeleteCategory(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete category")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("category deleted",
		slog.String("category_id", id.String()))
	shared.RespondNoContent(w)
}
