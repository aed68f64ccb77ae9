package handler

import (
	"net/http"

	"cellar-api/internal/model"
	"cellar-api/internal/service"
	"cellar-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ItemHandler handles inventory HTTP requests.
type ItemHandler struct {
	inventory *service.InventoryService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(inventory *service.InventoryService) *ItemHandler {
	return &ItemHandler{inventory: inventory}
}

// List handles GET /api/v1/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.List(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.List(w, items, len(items), model.SumTotals(items))
}

// Grouped handles GET /api/v1/items/grouped
func (h *ItemHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	list, err := h.inventory.Grouped(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, list)
}

// Suggestions handles GET /api/v1/items/suggestions?field=producer&prefix=con
func (h *ItemHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	got, err := h.inventory.Suggestions(r.Context(), values.Get("field"), values.Get("prefix"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, got)
}

// Create handles POST /api/v1/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.inventory.Add(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, item)
}

// Get handles GET /api/v1/items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, item)
}

// Update handles PUT /api/v1/items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.inventory.Edit(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, item)
}

// Delete handles DELETE /api/v1/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	response.NoContent(w)
}

type consumeRequest struct {
	Count int `json:"count"`
}

// Consume handles POST /api/v1/items/{id}/consume. An empty body consumes one bottle.
func (h *ItemHandler) Consume(w http.ResponseWriter, r *http.Request) {
	req := consumeRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	item, taken, err := h.inventory.Consume(r.Context(), chi.URLParam(r, "id"), req.Count)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"item":     item,
		"consumed": taken,
	})
}

type copyRequest struct {
	Quantity *int `json:"quantity"`
}

// Copy handles POST /api/v1/items/{id}/copy
func (h *ItemHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	}
	item, err := h.inventory.Copy(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, item)
}
