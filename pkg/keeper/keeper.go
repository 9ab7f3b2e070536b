// Package keeper is the core used by every front end: it owns the item and
// photo stores and keeps attachments in step with the records that use them.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/unowned-ai/trove/pkg/config"
	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/live"
	"github.com/unowned-ai/trove/pkg/photos"
	"github.com/unowned-ai/trove/pkg/utils"
	"github.com/unowned-ai/trove/pkg/view"
)

// Keeper coordinates the item store and the photo store.
type Keeper struct {
	items  *items.Store
	photos *photos.Store
	logger *slog.Logger
}

// Open opens both stores as configured. The database schema is migrated
// before Open returns; a migration failure leaves nothing open.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Keeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbPath, err := utils.ResolveAndEnsureDBPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	photosDir, err := utils.ExpandPath(cfg.PhotosDir)
	if err != nil {
		return nil, err
	}

	itemStore, err := items.Open(ctx, dbPath,
		items.WithWAL(cfg.WAL),
		items.WithSyncMode(cfg.Sync),
		items.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	photoStore, err := photos.Open(photosDir, photos.WithLogger(logger))
	if err != nil {
		itemStore.Close()
		return nil, err
	}

	return New(itemStore, photoStore, logger), nil
}

// New wires already opened stores.
func New(itemStore *items.Store, photoStore *photos.Store, logger *slog.Logger) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{items: itemStore, photos: photoStore, logger: logger}
}

// Close stops all subscriptions and closes the item store.
func (k *Keeper) Close() error {
	return k.items.Close()
}

// Items exposes the item store.
func (k *Keeper) Items() *items.Store {
	return k.items
}

// Photos exposes the photo store.
func (k *Keeper) Photos() *photos.Store {
	return k.photos
}

// Draft is the input for a new item. PhotoSource, when set, is a path or
// file:// URI to copy in as the attachment.
type Draft struct {
	Title       string
	Description string
	Category    string
	Timestamp   time.Time
	PhotoSource string
}

// CreateItem imports the draft's photo, if any, then inserts the item.
// A failed import aborts with photos.ErrImportFailed and nothing is stored;
// a failed insert removes the just-imported photo.
func (k *Keeper) CreateItem(ctx context.Context, d Draft) (items.Item, error) {
	item := items.New(d.Title, d.Description, d.Category, d.Timestamp)

	if d.PhotoSource != "" {
		ref, err := k.photos.Import(ctx, d.PhotoSource)
		if err != nil {
			return items.Item{}, err
		}
		item.PhotoRef = ref
	}

	added, err := k.items.Add(ctx, item)
	if err != nil {
		if item.HasPhoto() {
			k.discardPhoto(item.PhotoRef)
		}
		return items.Item{}, err
	}
	return added, nil
}

// UpdateItem replaces the stored item. A non-empty photoSource is imported
// first and becomes the new attachment. Otherwise item.PhotoRef must be empty
// or the reference already stored; anything else, such as the reference of
// a stale copy, fails with ErrConstraintViolation. Whatever photo the item
// no longer references is removed once the update has committed.
func (k *Keeper) UpdateItem(ctx context.Context, item items.Item, photoSource string) (items.Item, error) {
	imported := ""
	if photoSource != "" {
		ref, err := k.photos.Import(ctx, photoSource)
		if err != nil {
			return items.Item{}, err
		}
		imported = ref
		item.PhotoRef = ref
	}

	updated, previous, err := k.items.Replace(ctx, item, func(stored items.Item) error {
		switch item.PhotoRef {
		case "", stored.PhotoRef, imported:
			return nil
		}
		return fmt.Errorf("%w: photo %q is not attached to item %s", items.ErrConstraintViolation, item.PhotoRef, item.ID)
	})
	if err != nil {
		if imported != "" {
			k.discardPhoto(imported)
		}
		return items.Item{}, err
	}

	if previous.HasPhoto() && previous.PhotoRef != updated.PhotoRef {
		k.discardPhoto(previous.PhotoRef)
	}
	return updated, nil
}

// DeleteItem removes the item and then its photo. Deleting an item that is
// already gone succeeds.
func (k *Keeper) DeleteItem(ctx context.Context, id uuid.UUID) error {
	removed, err := k.items.Delete(ctx, id)
	if errors.Is(err, items.ErrItemNotFound) {
		k.logger.Debug("delete of absent item ignored", "id", id)
		return nil
	}
	if err != nil {
		return err
	}

	if removed.HasPhoto() {
		k.discardPhoto(removed.PhotoRef)
	}
	return nil
}

// Logger returns the logger the keeper reports to.
func (k *Keeper) Logger() *slog.Logger {
	return k.logger
}

// GetItem returns one item.
func (k *Keeper) GetItem(ctx context.Context, id uuid.UUID) (items.Item, error) {
	return k.items.Get(ctx, id)
}

// ListItems derives a view from the current snapshot.
func (k *Keeper) ListItems(ctx context.Context, opts view.Options) (view.Result, error) {
	all, err := k.items.All(ctx)
	if err != nil {
		return view.Result{}, err
	}
	return view.Apply(all, opts), nil
}

// Categories returns the category tabs of the current snapshot.
func (k *Keeper) Categories(ctx context.Context) ([]view.Tab, error) {
	all, err := k.items.All(ctx)
	if err != nil {
		return nil, err
	}
	return view.Tabs(all), nil
}

// ImportPhoto copies source into the photo store without touching any item.
func (k *Keeper) ImportPhoto(ctx context.Context, source string) (string, error) {
	return k.photos.Import(ctx, source)
}

// ResolvePhoto opens an attachment. false means show a placeholder: the
// reference is empty or its file is gone.
func (k *Keeper) ResolvePhoto(ref string) (*os.File, bool) {
	if ref == "" {
		return nil, false
	}
	f, err := k.photos.Resolve(ref)
	if err != nil {
		k.logger.Warn("photo unavailable, using placeholder", "ref", ref, "error", err)
		return nil, false
	}
	return f, true
}

// SweepPhotos removes photos that no item references.
func (k *Keeper) SweepPhotos(ctx context.Context) (photos.SweepResult, error) {
	all, err := k.items.All(ctx)
	if err != nil {
		return photos.SweepResult{}, err
	}

	inUse := make(map[string]bool, len(all))
	for _, item := range all {
		if item.HasPhoto() {
			inUse[item.PhotoRef] = true
		}
	}
	return k.photos.Sweep(ctx, func(ref string) bool { return inUse[ref] })
}

// discardPhoto removes a photo that is no longer referenced. Failures are
// logged only; SweepPhotos reconciles leftovers.
func (k *Keeper) discardPhoto(ref string) {
	if err := k.photos.Remove(ref); err != nil && !errors.Is(err, photos.ErrPhotoNotFound) {
		k.logger.Warn("failed to remove unreferenced photo", "ref", ref, "error", err)
	}
}

// SubscribeAll delivers every item now and after every write.
func (k *Keeper) SubscribeAll(fn func([]items.Item), opts ...live.SubscribeOption) (*live.Subscription[items.Item], error) {
	return k.items.SubscribeAll(func(s live.Snapshot[items.Item]) { fn(s.Items) }, opts...)
}

// SubscribeByCategory delivers one category now and after every write. The
// All label, or an empty one, subscribes to everything.
func (k *Keeper) SubscribeByCategory(category string, fn func([]items.Item), opts ...live.SubscribeOption) (*live.Subscription[items.Item], error) {
	if view.IsAll(category) {
		return k.SubscribeAll(fn, opts...)
	}
	return k.items.SubscribeByCategory(category, func(s live.Snapshot[items.Item]) { fn(s.Items) }, opts...)
}

// SubscribeTabs delivers the category tabs now and after every write.
func (k *Keeper) SubscribeTabs(fn func([]view.Tab), opts ...live.SubscribeOption) (*live.Subscription[items.Item], error) {
	opts = append([]live.SubscribeOption{live.WithName("tabs")}, opts...)
	return k.items.SubscribeAll(func(s live.Snapshot[items.Item]) { fn(view.Tabs(s.Items)) }, opts...)
}

// Date and time layouts accepted by ParseDateTime.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseDateTime combines a date field and a time-of-day field into one
// timestamp in loc. An empty clock means midnight; nil loc means local time.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	if clock == "" {
		return day, nil
	}

	tod, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), nil
}
