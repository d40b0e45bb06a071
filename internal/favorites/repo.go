package favorites

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the persisted shape of a favorite for an authenticated profile.
type Record struct {
	ID        int64           `gorm:"primaryKey"`
	ProfileID int64           `gorm:"column:profile_id;index"`
	ProductID string          `gorm:"column:product_id"`
	VariantID string          `gorm:"column:variant_id"`
	Name      string          `gorm:"column:name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	ImageURL  string          `gorm:"column:image_url"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

// TableName pins the table managed by migrations.
func (Record) TableName() string { return "user_favorites" }

func (r Record) toItem() Item {
	return Item{
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		Name:      r.Name,
		Price:     r.Price,
		ImageURL:  r.ImageURL,
	}
}

func recordFrom(profileID int64, item Item) Record {
	return Record{
		ProfileID: profileID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Name:      item.Name,
		Price:     item.Price,
		ImageURL:  item.ImageURL,
	}
}

// Repository exposes persistence operations for account favorites.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a favorites repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var insertIgnore = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "profile_id"},
		{Name: "product_id"},
	},
	DoNothing: true,
}

// FetchAll loads every favorite for the profile in insertion order.
func (r *Repository) FetchAll(ctx context.Context, profileID int64) ([]Item, error) {
	var rows []Record
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, nil
}

// Add inserts the favorite. Favoriting twice is a no-op.
func (r *Repository) Add(ctx context.Context, profileID int64, item Item) error {
	record := recordFrom(profileID, item)
	record.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(insertIgnore).
		Create(&record).Error
}

// Remove deletes the favorite. Removing an absent favorite is a no-op.
func (r *Repository) Remove(ctx context.Context, profileID int64, productID string) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ? AND product_id = ?", profileID, productID).
		Delete(&Record{}).Error
}

// ClearAll deletes every favorite for the profile.
func (r *Repository) ClearAll(ctx context.Context, profileID int64) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&Record{}).Error
}

const reconcileWorkers = 4

// ReconcileBatch makes the stored list match the desired membership. Writes
// run concurrently and best effort; every failure is collected so the caller
// can hold back its fingerprint and retry.
func (r *Repository) ReconcileBatch(ctx context.Context, profileID int64, desired []Item) error {
	remote, err := r.FetchAll(ctx, profileID)
	if err != nil {
		return err
	}

	plan := BuildPlan(desired, remote)
	if plan.Empty() {
		return nil
	}

	type op struct {
		item   Item
		delete bool
	}
	ops := make(chan op)

	var (
		mu     sync.Mutex
		merged error
		wg     sync.WaitGroup
	)

	for w := 0; w < reconcileWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range ops {
				var opErr error
				if o.delete {
					opErr = r.Remove(ctx, profileID, o.item.ProductID)
				} else {
					opErr = r.Add(ctx, profileID, o.item)
				}
				if opErr != nil {
					mu.Lock()
					merged = multierr.Append(merged, opErr)
					mu.Unlock()
				}
			}
		}()
	}

	for _, item := range plan.Inserts {
		ops <- op{item: item}
	}
	for _, item := range plan.Deletes {
		ops <- op{item: item, delete: true}
	}
	close(ops)
	wg.Wait()

	return merged
}
