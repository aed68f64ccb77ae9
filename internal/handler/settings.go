package handler

import (
	"errors"
	"net/http"

	"cellar-api/internal/model"
	"cellar-api/internal/settings"
	"cellar-api/internal/units"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/response"
	"cellar-api/pkg/validate"

	"github.com/go-chi/chi/v5"
)

// SettingsHandler exposes the user settings and sort orders.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

type settingsView struct {
	model.Settings
	Currencies      []string `json:"currencies"`
	BottleSizeUnits []string `json:"bottle_size_units"`
	SortableFields  []string `json:"sortable_fields"`
}

func (h *SettingsHandler) view() settingsView {
	fields := model.SortFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return settingsView{
		Settings:        h.store.Get(),
		Currencies:      units.Currencies,
		BottleSizeUnits: units.BottleSizeUnits,
		SortableFields:  names,
	}
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.view())
}

type updateSettingsRequest struct {
	Currency           *string `json:"currency"`
	BottleSizeUnit     *string `json:"bottle_size_unit"`
	ImportWithQuantity *bool   `json:"import_with_quantity"`
}

// Update handles PUT /api/v1/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	_, err := h.store.Update(r.Context(), settings.Preferences{
		Currency:           req.Currency,
		BottleSizeUnit:     req.BottleSizeUnit,
		ImportWithQuantity: req.ImportWithQuantity,
	})
	if err != nil {
		fail(w, r, settingsError(err))
		return
	}
	response.OK(w, h.view())
}

type sortOrderRequest struct {
	Name         string        `json:"name" validate:"required,max=100"`
	Fields       []model.Field `json:"fields" validate:"required,min=1"`
	HeaderFields []model.Field `json:"header_fields"`
}

func (req *sortOrderRequest) order(id string) model.SortOrder {
	return model.SortOrder{ID: id, Name: req.Name, Fields: req.Fields, HeaderFields: req.HeaderFields}
}

// CreateSortOrder handles POST /api/v1/settings/sort-orders
func (h *SettingsHandler) CreateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req sortOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		fail(w, r, err)
		return
	}
	order, err := h.store.CreateSortOrder(r.Context(), req.order(""))
	if err != nil {
		fail(w, r, settingsError(err))
		return
	}
	response.Created(w, order)
}

// UpdateSortOrder handles PUT /api/v1/settings/sort-orders/{id}
func (h *SettingsHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req sortOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		fail(w, r, err)
		return
	}
	order, err := h.store.UpdateSortOrder(r.Context(), req.order(chi.URLParam(r, "id")))
	if err != nil {
		fail(w, r, settingsError(err))
		return
	}
	response.OK(w, order)
}

// DeleteSortOrder handles DELETE /api/v1/settings/sort-orders/{id}
func (h *SettingsHandler) DeleteSortOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSortOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, settingsError(err))
		return
	}
	response.NoContent(w)
}

// SelectSortOrder handles POST /api/v1/settings/sort-orders/{id}/select
func (h *SettingsHandler) SelectSortOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SelectSortOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, settingsError(err))
		return
	}
	response.OK(w, h.view())
}

func settingsError(err error) error {
	switch {
	case errors.Is(err, settings.ErrSortOrderNotFound):
		return apierror.NotFound("sort order not found")
	case errors.Is(err, model.ErrInvalidSortOrder),
		errors.Is(err, settings.ErrUnknownCurrency),
		errors.Is(err, settings.ErrUnknownUnit):
		return apierror.ValidationError(err.Error())
	}
	return err
}
