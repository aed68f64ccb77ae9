package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cellar-api/internal/search"
	"cellar-api/internal/service"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/response"
)

// maxBodyBytes bounds JSON request bodies. Imports may carry images.
const maxBodyBytes = 64 << 20

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// fail writes err. Errors that are not API errors are logged before the generic
// 500 goes out.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := apierror.As(err); !ok {
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	response.Error(w, err)
}

// intParam parses an optional integer query parameter.
func intParam(values url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.BadRequest(name + " must be an integer")
	}
	return n, nil
}

// boolParam parses an optional boolean query parameter.
func boolParam(values url.Values, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierror.BadRequest(name + " must be true or false")
	}
	return b, nil
}

// listQuery reads q, sort_order_id and the advanced search criteria.
func listQuery(values url.Values) service.ListQuery {
	c := &search.Criteria{
		Name:             values.Get("name"),
		Producer:         values.Get("producer"),
		StorageLocation:  values.Get("storage_location"),
		Category:         values.Get("category"),
		Country:          values.Get("country"),
		Region:           values.Get("region"),
		Subregion:        values.Get("subregion"),
		Type:             values.Get("type"),
		VintageFrom:      values.Get("vintage_from"),
		VintageTo:        values.Get("vintage_to"),
		AlcoholFrom:      values.Get("alcohol_from"),
		AlcoholTo:        values.Get("alcohol_to"),
		PriceFrom:        values.Get("price_from"),
		PriceTo:          values.Get("price_to"),
		QuantityFrom:     values.Get("quantity_from"),
		QuantityTo:       values.Get("quantity_to"),
		ReadyToDrinkFrom: values.Get("ready_to_drink_from"),
		ReadyToDrinkTo:   values.Get("ready_to_drink_to"),
		BestBeforeFrom:   values.Get("best_before_from"),
		BestBeforeTo:     values.Get("best_before_to"),
		BottleSize:       values.Get("bottle_size"),
	}
	q := service.ListQuery{
		Query:       strings.TrimSpace(values.Get("q")),
		SortOrderID: values.Get("sort_order_id"),
	}
	if c.Active() {
		q.Criteria = c
	}
	return q
}
