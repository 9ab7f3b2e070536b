package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	insertItemStatement = `
	INSERT INTO items (id, title, description, category, date, photoUri)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	updateItemStatement = `
	UPDATE items
	SET title = ?, description = ?, category = ?, date = ?, photoUri = ?
	WHERE id = ?
	`

	deleteItemStatement = `
	DELETE FROM items
	WHERE id = ?
	`

	getItemStatement = `
	SELECT id, title, description, category, date, photoUri
	FROM items
	WHERE id = ?
	`

	listItemsStatement = `
	SELECT id, title, description, category, date, photoUri
	FROM items
	ORDER BY rowid
	`

	listItemsByCategoryStatement = `
	SELECT id, title, description, category, date, photoUri
	FROM items
	WHERE category = ?
	ORDER BY rowid
	`
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item  Item
		date  int64
		photo sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &date, &photo); err != nil {
		return Item{}, err
	}
	item.Timestamp = time.UnixMilli(date).UTC()
	item.PhotoRef = photo.String
	return item, nil
}

func photoColumn(ref string) sql.NullString {
	return sql.NullString{String: ref, Valid: ref != ""}
}

// Add inserts item. A nil ID is replaced with a fresh one; an existing ID
// fails with ErrConstraintViolation. The stored form is returned.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	if s.closed.Load() {
		return Item{}, ErrStoreClosed
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item = item.normalize()
	if err := item.Validate(); err != nil {
		return Item{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, insertItemStatement,
		item.ID,
		item.Title,
		item.Description,
		item.Category,
		item.Timestamp.UnixMilli(),
		photoColumn(item.PhotoRef),
	)
	if err != nil {
		if isConstraintError(err) {
			return Item{}, fmt.Errorf("%w: item %s: %w", ErrConstraintViolation, item.ID, err)
		}
		return Item{}, s.storeErr(err)
	}

	s.committed("add", item)
	return item, nil
}

// Update replaces every field of the item with the same ID.
func (s *Store) Update(ctx context.Context, item Item) (Item, error) {
	updated, _, err := s.Replace(ctx, item, nil)
	return updated, err
}

// Replace is Update that also returns the row it overwrote. The stored row
// is read in the same transaction as the write, and check, when non-nil,
// may veto the write by returning an error.
func (s *Store) Replace(ctx context.Context, item Item, check func(stored Item) error) (Item, Item, error) {
	if s.closed.Load() {
		return Item{}, Item{}, ErrStoreClosed
	}
	item = item.normalize()
	if err := item.Validate(); err != nil {
		return Item{}, Item{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, Item{}, s.storeErr(err)
	}
	defer tx.Rollback() // No-op if committed

	previous, err := scanItem(tx.QueryRowContext(ctx, getItemStatement, item.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, Item{}, ErrItemNotFound
		}
		return Item{}, Item{}, s.storeErr(err)
	}
	if check != nil {
		if err := check(previous); err != nil {
			return Item{}, Item{}, err
		}
	}

	_, err = tx.ExecContext(ctx, updateItemStatement,
		item.Title,
		item.Description,
		item.Category,
		item.Timestamp.UnixMilli(),
		photoColumn(item.PhotoRef),
		item.ID,
	)
	if err != nil {
		if isConstraintError(err) {
			return Item{}, Item{}, fmt.Errorf("%w: item %s: %w", ErrConstraintViolation, item.ID, err)
		}
		return Item{}, Item{}, s.storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return Item{}, Item{}, s.storeErr(err)
	}

	s.committed("update", item)
	return item, previous, nil
}

// Delete removes the item and returns it as it was stored.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (Item, error) {
	if s.closed.Load() {
		return Item{}, ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, s.storeErr(err)
	}
	defer tx.Rollback() // No-op if committed

	item, err := scanItem(tx.QueryRowContext(ctx, getItemStatement, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}

	if _, err := tx.ExecContext(ctx, deleteItemStatement, id); err != nil {
		return Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return Item{}, err
	}

	s.committed("delete", item)
	return item, nil
}

// Get returns one item by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	if s.closed.Load() {
		return Item{}, ErrStoreClosed
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, getItemStatement, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, s.storeErr(err)
	}
	return item, nil
}

// All returns every item in insertion order.
func (s *Store) All(ctx context.Context) ([]Item, error) {
	return s.list(ctx, listItemsStatement)
}

// ByCategory returns the items whose category equals category exactly,
// after trimming. An empty category selects Uncategorized.
func (s *Store) ByCategory(ctx context.Context, category string) ([]Item, error) {
	return s.list(ctx, listItemsByCategoryStatement, NormalizeCategory(category))
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Item, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storeErr(err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeErr(err)
	}
	return items, nil
}
