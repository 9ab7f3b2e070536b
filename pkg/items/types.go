package items

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultCategory is assigned to items saved without a category.
const DefaultCategory = "Uncategorized"

// AllCategory is the synthetic tab label covering every item. It cannot be
// used as a real category.
const AllCategory = "All"

const maxCategoryLength = 64

// KnownCategories are offered when creating an item. Free-form categories
// are accepted too.
var KnownCategories = []string{DefaultCategory, "Work", "Personal", "Shopping", "Other"}

// Item is a single tracked record.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	PhotoRef    string    `json:"photo_ref,omitempty"` // empty means no attachment
}

// New returns an item with a fresh ID.
func New(title, description, category string, timestamp time.Time) Item {
	return Item{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Category:    category,
		Timestamp:   timestamp,
	}
}

// HasPhoto reports whether the item carries an attachment reference.
func (i Item) HasPhoto() bool {
	return i.PhotoRef != ""
}

// normalize applies the storage rules: trimmed category with a default,
// millisecond UTC timestamps.
func (i Item) normalize() Item {
	i.Category = NormalizeCategory(i.Category)
	i.Timestamp = NormalizeTimestamp(i.Timestamp)
	return i
}

// NormalizeCategory trims the category and substitutes DefaultCategory for an empty one.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}

// NormalizeTimestamp truncates to the stored precision.
func NormalizeTimestamp(ts time.Time) time.Time {
	return time.UnixMilli(ts.UnixMilli()).UTC()
}

// Validate checks an already-normalized item.
func (i Item) Validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("%w: item id is required", ErrConstraintViolation)
	}
	if i.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrConstraintViolation)
	}
	return ValidateCategory(i.Category)
}

// ValidateCategory rejects categories that cannot be stored or shown as a tab.
func ValidateCategory(category string) error {
	switch {
	case strings.EqualFold(category, AllCategory):
		return fmt.Errorf("%w: category %q is reserved", ErrConstraintViolation, category)
	case utf8.RuneCountInString(category) > maxCategoryLength:
		return fmt.Errorf("%w: category longer than %d characters", ErrConstraintViolation, maxCategoryLength)
	case strings.IndexFunc(category, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: category contains control characters", ErrConstraintViolation)
	}
	return nil
}
