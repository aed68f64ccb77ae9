package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cellar-api/internal/events"
	"cellar-api/internal/handler"
	"cellar-api/internal/ledger"
	"cellar-api/internal/middleware"
	"cellar-api/internal/repository"
	"cellar-api/internal/service"
	"cellar-api/internal/settings"
	"cellar-api/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(t *testing.T, apiKeys ...string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	bus := events.NewBus("test", nil)
	prefs, err := settings.Load(ctx, store, settings.Defaults{Currency: "EUR (€)", BottleSizeUnit: "ml"}, bus, nil)
	require.NoError(t, err)

	l := ledger.New(store, store, ledger.WithBus(bus))
	inventory := service.NewInventoryService(store, l, prefs, bus, nil)
	transfer := service.NewTransferService(store, prefs, bus, "", nil)
	printer := service.NewPrintService(inventory, nil)
	history := service.NewHistoryService(l, nil)

	r := New(Config{
		Logger:          logger.Nop(),
		Handler:         handler.New("cellar-api", "test", map[string]handler.Pinger{"database": store}),
		ItemHandler:     handler.NewItemHandler(inventory),
		HistoryHandler:  handler.NewHistoryHandler(history),
		SettingsHandler: handler.NewSettingsHandler(prefs),
		TransferHandler: handler.NewTransferHandler(transfer, printer),
		AdminHandler:    handler.NewAdminHandler(store, "memory", "none"),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			APIKeys: apiKeys,
			Public:  []string{"/api/v1/health", "/api/v1/ready"},
		}),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type itemView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Producer   string `json:"producer"`
	Quantity   int    `json:"quantity"`
	BottleSize string `json:"bottle_size"`
}

func TestItemLifecycle(t *testing.T) {
	srv := newServer(t)

	resp, env := do(t, srv, http.MethodPost, "/api/v1/items", map[string]any{
		"name": "Barolo", "producer": "Conterno", "vintage": "2016", "quantity": 3, "price": "45.00", "bottle_size": "75cl",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[itemView](t, env)
	assert.Equal(t, "750ml", created.BottleSize)

	resp, env = do(t, srv, http.MethodPost, "/api/v1/items/"+created.ID+"/consume", map[string]any{"count": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	consumed := decode[struct {
		Item     itemView `json:"item"`
		Consumed int      `json:"consumed"`
	}](t, env)
	assert.Equal(t, 2, consumed.Consumed)
	assert.Equal(t, 1, consumed.Item.Quantity)

	resp, env = do(t, srv, http.MethodPost, "/api/v1/items/"+created.ID+"/copy", map[string]any{"quantity": 6})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	copied := decode[itemView](t, env)
	assert.NotEqual(t, created.ID, copied.ID)
	assert.Equal(t, 6, copied.Quantity)

	resp, env = do(t, srv, http.MethodPut, "/api/v1/items/"+created.ID, map[string]any{"name": "Barolo Cannubi", "producer": "Conterno", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Barolo Cannubi", decode[itemView](t, env).Name)

	resp, env = do(t, srv, http.MethodGet, "/api/v1/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]itemView](t, env), 2)

	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, env = do(t, srv, http.MethodGet, "/api/v1/items/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	resp, env = do(t, srv, http.MethodGet, "/api/v1/history?action=Consumed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, env), 1)

	resp, env = do(t, srv, http.MethodGet, "/api/v1/history/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[map[string]any](t, env)
	assert.EqualValues(t, 5, summary["total_actions"])

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/history/series?timeframe=week&metric=value", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestItemValidationAndConsumeErrors(t *testing.T) {
	srv := newServer(t)

	resp, env := do(t, srv, http.MethodPost, "/api/v1/items", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/items", map[string]any{"name": "x", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, env = do(t, srv, http.MethodPost, "/api/v1/items", map[string]any{"name": "Empty", "quantity": 0})
	id := decode[itemView](t, env).ID
	resp, env = do(t, srv, http.MethodPost, "/api/v1/items/"+id+"/consume", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "UNPROCESSABLE", env.Error.Code)
}

func TestGroupedAndSuggestions(t *testing.T) {
	srv := newServer(t)
	for _, in := range []map[string]any{
		{"name": "Barolo", "producer": "Conterno", "country": "Italy", "quantity": 1},
		{"name": "Barbaresco", "producer": "Gaja", "country": "Italy", "quantity": 1},
		{"name": "Riesling", "producer": "Prüm", "country": "Germany", "quantity": 1},
	} {
		resp, _ := do(t, srv, http.MethodPost, "/api/v1/items", in)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, env := do(t, srv, http.MethodGet, "/api/v1/items/grouped?country=italy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grouped := decode[service.GroupedList](t, env)
	assert.Equal(t, 2, grouped.Count)
	assert.Len(t, grouped.Rows, 4)

	resp, env = do(t, srv, http.MethodGet, "/api/v1/items/suggestions?field=name&prefix=ba", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Barbaresco", "Barolo"}, decode[[]string](t, env))
}

func TestSettingsEndpoints(t *testing.T) {
	srv := newServer(t)

	resp, env := do(t, srv, http.MethodPut, "/api/v1/settings", map[string]any{"currency": "CHF (Fr)", "bottle_size_unit": "cl"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, env)
	assert.Equal(t, "CHF (Fr)", got["currency"])
	assert.Equal(t, "cl", got["bottle_size_unit"])

	resp, _ = do(t, srv, http.MethodPut, "/api/v1/settings", map[string]any{"currency": "Doubloons"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = do(t, srv, http.MethodPost, "/api/v1/settings/sort-orders", map[string]any{
		"name": "Size", "fields": []string{"bottle_size", "name"}, "header_fields": []string{"bottle_size"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := decode[map[string]any](t, env)["id"].(string)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/settings/sort-orders", map[string]any{
		"name": "Bad", "fields": []string{"name"}, "header_fields": []string{"country"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/settings/sort-orders", map[string]any{
		"name": "Unknown", "fields": []string{"colour"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = do(t, srv, http.MethodPost, "/api/v1/settings/sort-orders/"+orderID+"/select", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orderID, decode[map[string]any](t, env)["selected_sort_order_id"])

	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/settings/sort-orders/"+orderID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/settings/sort-orders/"+orderID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportImportEndpoints(t *testing.T) {
	src := newServer(t)
	do(t, src, http.MethodPost, "/api/v1/items", map[string]any{"name": "Barolo", "producer": "Conterno", "vintage": "2016", "quantity": 3})
	do(t, src, http.MethodPost, "/api/v1/items", map[string]any{"name": "Riesling", "producer": "Prüm", "vintage": "2019", "quantity": 2})

	resp, err := src.Client().Get(src.URL + "/api/v1/export?images=false")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "_NoImages.simplewinemanager")
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	dst := newServer(t)
	post := func() envelope {
		req, err := http.NewRequest(http.MethodPost, dst.URL+"/api/v1/import", bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		r, err := dst.Client().Do(req)
		require.NoError(t, err)
		defer r.Body.Close()
		require.Equal(t, http.StatusOK, r.StatusCode)
		var env envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		return env
	}
	first := decode[map[string]int](t, post())
	assert.Equal(t, map[string]int{"imported": 2, "skipped": 0, "total": 2}, first)
	second := decode[map[string]int](t, post())
	assert.Equal(t, map[string]int{"imported": 0, "skipped": 2, "total": 2}, second)

	resp, _ = do(t, dst, http.MethodPost, "/api/v1/import", map[string]any{"wines": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	xlsx, err := src.Client().Get(src.URL + "/api/v1/export/xlsx")
	require.NoError(t, err)
	defer xlsx.Body.Close()
	assert.Equal(t, http.StatusOK, xlsx.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx.Header.Get("Content-Type"))
}

func TestHealthAndAuth(t *testing.T) {
	srv := newServer(t, "secret")

	resp, _ := do(t, srv, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env := do(t, srv, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[handler.ReadyResponse](t, env).Ready)
	resp, _ = do(t, srv, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/items", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/admin/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	r, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}
