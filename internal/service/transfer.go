package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"cellar-api/internal/events"
	"cellar-api/internal/model"
	"cellar-api/internal/repository"
	"cellar-api/internal/settings"
	"cellar-api/pkg/apierror"
	"cellar-api/pkg/logger"
	"cellar-api/pkg/uid"
)

// DefaultExporter is written into exportedBy when none is configured.
const DefaultExporter = "Wine Manager"

// Import failure classes.
var (
	ErrImportFileNotFound  = errors.New("file not found")
	ErrImportInvalidFormat = errors.New("invalid file format")
	ErrImportAccessDenied  = errors.New("unable to access the file")
)

// ImportResult counts what an import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Total is imported plus skipped.
func (r ImportResult) Total() int {
	return r.Imported + r.Skipped
}

// TransferService moves the collection in and out as JSON documents.
type TransferService struct {
	items    repository.ItemRepository
	settings *settings.Store
	bus      *events.Bus
	log      *logger.Logger
	exporter string
	now      func() time.Time
}

// NewTransferService creates a new transfer service.
func NewTransferService(items repository.ItemRepository, prefs *settings.Store, bus *events.Bus, exporter string, log *logger.Logger) *TransferService {
	if items == nil {
		return nil
	}
	if exporter == "" {
		exporter = DefaultExporter
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TransferService{
		items:    items,
		settings: prefs,
		bus:      bus,
		log:      log.WithComponent("transfer"),
		exporter: exporter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export builds a collection from the items with the given ids, or from every item
// when ids is empty.
func (s *TransferService) Export(ctx context.Context, ids []string, includeImages bool) (*model.Collection, error) {
	var items []model.Item
	if len(ids) == 0 {
		all, err := s.items.ListItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		items = all
	} else {
		for _, id := range ids {
			item, err := s.items.GetItem(ctx, id)
			if err != nil {
				return nil, itemError(err)
			}
			items = append(items, *item)
		}
	}

	c := &model.Collection{
		Version:    model.CollectionVersion,
		ExportDate: s.now().Truncate(time.Second),
		ExportedBy: s.exporter,
		Wines:      make([]model.SharedItem, 0, len(items)),
	}
	for i := range items {
		c.Wines = append(c.Wines, model.Share(&items[i], includeImages))
	}
	return c, nil
}

// Encode renders a collection as indented JSON.
func (s *TransferService) Encode(c *model.Collection) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	return data, nil
}

// FileName is the suggested download name for an export made at t.
func FileName(t time.Time, includeImages bool) string {
	suffix := ""
	if !includeImages {
		suffix = "_NoImages"
	}
	return "WineCollection_" + t.Format("2006-01-02_15-04-05") + suffix + ".simplewinemanager"
}

// Decode parses a collection document.
func Decode(data []byte) (*model.Collection, error) {
	var c model.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFormat, err)
	}
	if c.Wines == nil {
		return nil, fmt.Errorf("%w: missing wines", ErrImportInvalidFormat)
	}
	return &c, nil
}

// Import decodes data and imports it.
func (s *TransferService) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	c, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return s.ImportCollection(ctx, c)
}

// ImportCollection adds every wine that is not already stored. A wine matches an
// existing one by id, then by name, producer and vintage ignoring case and
// surrounding space. Matches are skipped, never overwritten. Quantities are kept
// only when the import-with-quantity setting is on.
func (s *TransferService) ImportCollection(ctx context.Context, c *model.Collection) (*ImportResult, error) {
	withQuantity := false
	if s.settings != nil {
		withQuantity = s.settings.Get().ImportWithQuantity
	}

	result := &ImportResult{}
	seenIDs := make(map[string]bool, len(c.Wines))
	seenKeys := make(map[string]bool, len(c.Wines))
	batch := make([]model.Item, 0, len(c.Wines))
	now := s.now()

	for i := range c.Wines {
		item := c.Wines[i].Item()
		if uid.IsValid(item.ID) {
			item.ID = uid.Normalize(item.ID)
		} else {
			item.ID = uid.New()
		}

		key, hasKey := item.IdentityKey()
		if seenIDs[item.ID] || (hasKey && seenKeys[key]) {
			result.Skipped++
			continue
		}
		existing, err := s.items.FindDuplicate(ctx, &item)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if !withQuantity {
			item.Quantity = 0
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		seenIDs[item.ID] = true
		if hasKey {
			seenKeys[key] = true
		}
		batch = append(batch, item)
	}

	if len(batch) > 0 {
		if err := s.items.CreateItems(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to store imported items: %w", err)
		}
	}
	result.Imported = len(batch)

	s.bus.Publish(ctx, events.Event{Kind: events.ItemsImported, Count: result.Imported})
	s.log.Infow("collection imported", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ImportFile reads and imports a collection file. Failures are classified as
// ErrImportFileNotFound, ErrImportAccessDenied or ErrImportInvalidFormat where
// possible.
func (s *TransferService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyReadError(err)
	}
	return s.Import(ctx, data)
}

func classifyReadError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrImportFileNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrImportAccessDenied, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", ErrImportAccessDenied, err)
	}
	return err
}

// ImportError maps an import failure onto an API error.
func ImportError(err error) error {
	switch {
	case errors.Is(err, ErrImportInvalidFormat):
		return apierror.BadRequest("Invalid file format")
	case errors.Is(err, ErrImportFileNotFound):
		return apierror.NotFound("File not found")
	case errors.Is(err, ErrImportAccessDenied):
		return apierror.Forbidden("Unable to access the file")
	}
	return err
}
