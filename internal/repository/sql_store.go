package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cellar-api/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

const (
	itemsTable    = "wine_items"
	historyTable  = "wine_history"
	settingsTable = "app_settings"
	settingsKey   = "settings"
)

// dialect captures what differs between the SQL backends. Query text is shared and
// built with squirrel; only placeholders and DDL vary.
type dialect struct {
	name         string
	placeholder  sq.PlaceholderFormat
	schema       []string
	singleWriter bool
}

// SQLStore implements Store on top of database/sql for sqlite, postgres and mysql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType

	// mu serialises writers on backends that only allow one.
	mu sync.RWMutex
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}, nil
}

func (s *SQLStore) lock() func() {
	if !s.dialect.singleWriter {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *SQLStore) rlock() func() {
	if !s.dialect.singleWriter {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// Dialect returns the backend name.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

var itemColumns = []string{
	"id", "name", "producer", "vintage", "alcohol", "quantity",
	"country", "region", "subregion", "wine_type", "category", "price",
	"bottle_size", "ready_to_drink_year", "best_before_year", "storage_location",
	"rating", "remarks", "front_image", "back_image", "created_at", "updated_at",
}

func itemValues(it *model.Item) []interface{} {
	return []interface{}{
		it.ID, it.Name, it.Producer, it.Vintage, it.Alcohol, it.Quantity,
		it.Country, it.Region, it.Subregion, it.Type, it.Category, decimalValue(it.Price),
		it.BottleSize, it.ReadyToDrinkYear, it.BestBeforeYear, it.StorageLocation,
		it.Rating, it.Remarks, it.FrontImage, it.BackImage, unixNano(it.CreatedAt), unixNano(it.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*model.Item, error) {
	var (
		it                model.Item
		price             sql.NullString
		created, updated  int64
		frontImg, backImg []byte
	)
	err := row.Scan(
		&it.ID, &it.Name, &it.Producer, &it.Vintage, &it.Alcohol, &it.Quantity,
		&it.Country, &it.Region, &it.Subregion, &it.Type, &it.Category, &price,
		&it.BottleSize, &it.ReadyToDrinkYear, &it.BestBeforeYear, &it.StorageLocation,
		&it.Rating, &it.Remarks, &frontImg, &backImg, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if it.Price, err = parseDecimal(price); err != nil {
		return nil, fmt.Errorf("failed to parse price of %s: %w", it.ID, err)
	}
	if len(frontImg) > 0 {
		it.FrontImage = frontImg
	}
	if len(backImg) > 0 {
		it.BackImage = backImg
	}
	it.CreatedAt = fromUnixNano(created)
	it.UpdatedAt = fromUnixNano(updated)
	return &it, nil
}

// CreateItem inserts a new item.
func (s *SQLStore) CreateItem(ctx context.Context, item *model.Item) error {
	defer s.lock()()

	query, args, err := s.builder.Insert(itemsTable).Columns(itemColumns...).Values(itemValues(item)...).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// CreateItems inserts items in one transaction.
func (s *SQLStore) CreateItems(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		query, args, err := s.builder.Insert(itemsTable).Columns(itemColumns...).Values(itemValues(&items[i])...).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to batch insert item %s: %w", items[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateItem overwrites every column except id and created_at.
func (s *SQLStore) UpdateItem(ctx context.Context, item *model.Item) error {
	defer s.lock()()

	values := itemValues(item)
	update := s.builder.Update(itemsTable)
	for i, col := range itemColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		update = update.Set(col, values[i])
	}
	query, args, err := update.Where(sq.Eq{"id": item.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireAffected(res)
}

// DeleteItem removes an item by id.
func (s *SQLStore) DeleteItem(ctx context.Context, id string) error {
	defer s.lock()()

	query, args, err := s.builder.Delete(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItem returns one item.
func (s *SQLStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	defer s.rlock()()
	return s.getItem(ctx, id)
}

func (s *SQLStore) getItem(ctx context.Context, id string) (*model.Item, error) {
	query, args, err := s.builder.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns all items in insertion order.
func (s *SQLStore) ListItems(ctx context.Context) ([]model.Item, error) {
	defer s.rlock()()
	return s.queryItems(ctx, s.builder.Select(itemColumns...).From(itemsTable).OrderBy("seq"))
}

func (s *SQLStore) queryItems(ctx context.Context, b sq.SelectBuilder) ([]model.Item, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// FindDuplicate matches by id first, then by identity key. Vintage narrows the
// candidates in SQL; name and producer are compared case-insensitively in Go so
// non-ASCII names fold the same way on every backend.
func (s *SQLStore) FindDuplicate(ctx context.Context, item *model.Item) (*model.Item, error) {
	defer s.rlock()()

	if item.ID != "" {
		found, err := s.getItem(ctx, item.ID)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	key, ok := item.IdentityKey()
	if !ok {
		return nil, nil
	}
	vintage := strings.ToLower(strings.TrimSpace(item.Vintage))
	candidates, err := s.queryItems(ctx, s.builder.Select(itemColumns...).From(itemsTable).
		Where(sq.Eq{"LOWER(TRIM(vintage))": vintage}).OrderBy("seq"))
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if k, ok := candidates[i].IdentityKey(); ok && k == key {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// Totals sums the live inventory.
func (s *SQLStore) Totals(ctx context.Context) (model.Totals, error) {
	defer s.rlock()()

	query, args, err := s.builder.Select("quantity", "price").From(itemsTable).ToSql()
	if err != nil {
		return model.Totals{}, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Totals{}, fmt.Errorf("failed to sum inventory: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var (
			it    model.Item
			price sql.NullString
		)
		if err := rows.Scan(&it.Quantity, &price); err != nil {
			return model.Totals{}, fmt.Errorf("failed to scan totals: %w", err)
		}
		if it.Price, err = parseDecimal(price); err != nil {
			return model.Totals{}, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return model.Totals{}, err
	}
	return model.SumTotals(items), nil
}

var historyColumns = []string{
	"id", "ts", "action", "change_details", "snapshot", "quantity_change", "price_at_time",
	"item_id", "item_name", "item_producer", "item_vintage", "total_quantity", "total_value",
}

func scanEvent(row scanner) (*model.HistoryEvent, error) {
	var (
		ev           model.HistoryEvent
		ts           int64
		price, total sql.NullString
	)
	err := row.Scan(
		&ev.ID, &ts, &ev.Action, &ev.ChangeDetails, &ev.Snapshot, &ev.QuantityChange, &price,
		&ev.ItemID, &ev.ItemName, &ev.ItemProducer, &ev.ItemVintage, &ev.TotalQuantityAtTime, &total,
	)
	if err != nil {
		return nil, err
	}
	ev.Timestamp = fromUnixNano(ts)
	if ev.PriceAtTime, err = parseDecimal(price); err != nil {
		return nil, fmt.Errorf("failed to parse price of event %s: %w", ev.ID, err)
	}
	if ev.TotalValueAtTime, err = parseDecimal(total); err != nil {
		return nil, fmt.Errorf("failed to parse total of event %s: %w", ev.ID, err)
	}
	return &ev, nil
}

// AppendEvent writes one history row inside a transaction.
func (s *SQLStore) AppendEvent(ctx context.Context, ev *model.HistoryEvent) error {
	defer s.lock()()

	query, args, err := s.builder.Insert(historyTable).Columns(historyColumns...).Values(
		ev.ID, unixNano(ev.Timestamp), string(ev.Action), ev.ChangeDetails, ev.Snapshot, ev.QuantityChange,
		decimalValue(ev.PriceAtTime), ev.ItemID, ev.ItemName, ev.ItemProducer, ev.ItemVintage,
		ev.TotalQuantityAtTime, decimalValue(ev.TotalValueAtTime),
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to append history event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListEvents returns events matching filter ordered by time, then insertion.
func (s *SQLStore) ListEvents(ctx context.Context, filter model.HistoryFilter) ([]model.HistoryEvent, error) {
	defer s.rlock()()

	b := s.builder.Select(historyColumns...).From(historyTable)
	if filter.ItemID != "" {
		b = b.Where(sq.Eq{"item_id": filter.ItemID})
	}
	if filter.Action != "" {
		b = b.Where(sq.Eq{"action": string(filter.Action)})
	}
	if !filter.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"ts": unixNano(filter.Since)})
	}
	if !filter.Until.IsZero() {
		b = b.Where(sq.LtOrEq{"ts": unixNano(filter.Until)})
	}
	if filter.Newest {
		b = b.OrderBy("ts DESC", "seq DESC")
	} else {
		b = b.OrderBy("ts ASC", "seq ASC")
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var events []model.HistoryEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// LatestEvent returns the newest event or nil.
func (s *SQLStore) LatestEvent(ctx context.Context) (*model.HistoryEvent, error) {
	events, err := s.ListEvents(ctx, model.HistoryFilter{Newest: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// UpdateRunningTotals rewrites totals for events in a single transaction. Any
// failure rolls back every row.
func (s *SQLStore) UpdateRunningTotals(ctx context.Context, events []model.HistoryEvent) error {
	if len(events) == 0 {
		return nil
	}
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		query, args, err := s.builder.Update(historyTable).
			Set("total_quantity", ev.TotalQuantityAtTime).
			Set("total_value", decimalValue(ev.TotalValueAtTime)).
			Where(sq.Eq{"id": ev.ID}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update running totals of %s: %w", ev.ID, err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("failed to update running totals of %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadSettings reads the settings document.
func (s *SQLStore) LoadSettings(ctx context.Context) (*model.Settings, error) {
	defer s.rlock()()

	query, args, err := s.builder.Select("body").From(settingsTable).Where(sq.Eq{"name": settingsKey}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	var body string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(body), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings replaces the settings document. Delete-then-insert keeps the
// statement portable across the three backends.
func (s *SQLStore) SaveSettings(ctx context.Context, settings *model.Settings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del, delArgs, err := s.builder.Delete(settingsTable).Where(sq.Eq{"name": settingsKey}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	ins, insArgs, err := s.builder.Insert(settingsTable).Columns("name", "body").Values(settingsKey, string(body)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ins, insArgs...); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStats returns row counts and the last history timestamp.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.rlock()()

	stats := map[string]interface{}{"backend": s.dialect.name}

	var items, bottles int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM "+itemsTable).Scan(&items, &bottles); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	stats["total_items"] = items
	stats["total_bottles"] = bottles

	var events int64
	var lastTS sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(ts) FROM "+historyTable).Scan(&events, &lastTS); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}
	stats["history_events"] = events
	if lastTS.Valid {
		stats["last_event"] = fromUnixNano(lastTS.Int64)
	}
	return stats, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func decimalValue(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
