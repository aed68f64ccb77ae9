package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cellar-api/internal/export"
	"cellar-api/internal/model"
	"cellar-api/internal/units"
)

// PrintTitle heads every printed list.
const PrintTitle = "Wine List"

// PrintService lays out the grouped inventory as a printable document.
type PrintService struct {
	inventory *InventoryService
	now       func() time.Time
	location  *time.Location
}

// NewPrintService creates a print service. Dates are shown in loc (UTC when nil).
func NewPrintService(inventory *InventoryService, loc *time.Location) *PrintService {
	if inventory == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PrintService{inventory: inventory, now: time.Now, location: loc}
}

// Document builds the printable list for q.
func (s *PrintService) Document(ctx context.Context, q ListQuery) (*export.Document, error) {
	list, err := s.inventory.grouped(ctx, q)
	if err != nil {
		return nil, err
	}
	prefs := s.inventory.prefs()

	total := 0
	doc := &export.Document{
		Title:    PrintTitle,
		Subtitle: s.now().In(s.location).Format("02.01.2006"),
		Lines:    make([]export.Line, 0, len(list.Rows)),
	}
	priceSorted := list.SortOrder != nil && containsField(list.SortOrder.Fields, model.FieldPrice)

	for _, row := range list.Rows {
		if row.Item == nil {
			doc.Lines = append(doc.Lines, export.Line{Level: row.Level, Heading: row.DisplayTitle})
			continue
		}
		total += row.Item.Quantity
		doc.Lines = append(doc.Lines, export.Line{
			Level:   row.Level,
			Text:    itemHeadline(row.Item),
			Details: itemDetails(row.Item, prefs, !priceSorted),
		})
	}
	doc.Total = "Total Wines: " + strconv.Itoa(total)
	return doc, nil
}

// WriteXLSX renders the document for q as a workbook.
func (s *PrintService) WriteXLSX(ctx context.Context, w io.Writer, q ListQuery) error {
	doc, err := s.Document(ctx, q)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(w, doc); err != nil {
		return fmt.Errorf("failed to render wine list: %w", err)
	}
	return nil
}

// itemHeadline is "<name> <vintage>, <producer>".
func itemHeadline(item *model.Item) string {
	name := item.Name
	if name == "" {
		name = "Unknown"
	}
	producer := item.Producer
	if producer == "" {
		producer = "-"
	}
	return strings.TrimSpace(name+" "+item.Vintage) + ", " + producer
}

// itemDetails joins quantity, size, alcohol, price and location with " • ". The
// price is left out when the list is already sorted by it.
func itemDetails(item *model.Item, prefs model.Settings, withPrice bool) string {
	parts := []string{"Qty: " + strconv.Itoa(item.Quantity)}
	if item.BottleSize != "" {
		parts = append(parts, units.DisplayBottleSize(item.BottleSize, prefs.BottleSizeUnit))
	}
	if item.Alcohol != "" {
		parts = append(parts, item.Alcohol+"%")
	}
	if withPrice && item.Price != nil && !item.Price.IsZero() {
		parts = append(parts, units.FormatPrice(item.Price, prefs.Currency))
	}
	if item.StorageLocation != "" {
		parts = append(parts, item.StorageLocation)
	}
	return strings.Join(parts, " • ")
}

func containsField(fields []model.Field, f model.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
