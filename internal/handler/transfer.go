package handler

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"cellar-api/internal/export"
	"cellar-api/internal/service"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/response"
)

// TransferHandler serves collection export, import and the printable list.
type TransferHandler struct {
	transfer *service.TransferService
	print    *service.PrintService
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(transfer *service.TransferService, print *service.PrintService) *TransferHandler {
	return &TransferHandler{transfer: transfer, print: print}
}

// Export handles GET /api/v1/export?ids=a,b&images=false
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	includeImages, err := boolParam(values, "images", true)
	if err != nil {
		fail(w, r, err)
		return
	}
	var ids []string
	for _, id := range strings.Split(values.Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	collection, err := h.transfer.Export(r.Context(), ids, includeImages)
	if err != nil {
		fail(w, r, err)
		return
	}
	data, err := h.transfer.Encode(collection)
	if err != nil {
		fail(w, r, err)
		return
	}

	response.Attachment(w, "application/json", service.FileName(collection.ExportDate, includeImages), data)
}

// ExportXLSX handles GET /api/v1/export/xlsx with the same filters as the item list.
func (h *TransferHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.print.WriteXLSX(r.Context(), &buf, listQuery(r.URL.Query())); err != nil {
		fail(w, r, err)
		return
	}

	name := "WineList_" + time.Now().UTC().Format("2006-01-02") + ".xlsx"
	response.Attachment(w, export.ContentTypeXLSX, name, buf.Bytes())
}

// Print handles GET /api/v1/export/print, the print layout as JSON.
func (h *TransferHandler) Print(w http.ResponseWriter, r *http.Request) {
	doc, err := h.print.Document(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.OK(w, doc)
}

// Import handles POST /api/v1/import with a collection document as the body.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		fail(w, r, apierror.BadRequest("failed to read request body"))
		return
	}
	if buf.Len() == 0 {
		fail(w, r, apierror.BadRequest("request body is required"))
		return
	}

	result, err := h.transfer.Import(r.Context(), buf.Bytes())
	if err != nil {
		fail(w, r, service.ImportError(err))
		return
	}
	response.OK(w, map[string]interface{}{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"total":    result.Total(),
	})
}
