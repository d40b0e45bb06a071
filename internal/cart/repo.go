package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the persisted shape of a cart line for an authenticated profile.
type Record struct {
	ID        int64           `gorm:"primaryKey"`
	ProfileID int64           `gorm:"column:profile_id;index"`
	ProductID string          `gorm:"column:product_id"`
	VariantID string          `gorm:"column:variant_id"`
	Quantity  int             `gorm:"column:quantity"`
	Name      string          `gorm:"column:name"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	ImageURL  string          `gorm:"column:image_url"`
	Color     string          `gorm:"column:color"`
	Size      string          `gorm:"column:size"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

// TableName pins the table managed by migrations.
func (Record) TableName() string { return "user_cart_items" }

func (r Record) toItem() Item {
	return Item{
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		Quantity:  r.Quantity,
		Name:      r.Name,
		Price:     r.Price,
		ImageURL:  r.ImageURL,
		Color:     r.Color,
		Size:      r.Size,
	}
}

func recordFrom(profileID int64, item Item) Record {
	return Record{
		ProfileID: profileID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		Name:      item.Name,
		Price:     item.Price,
		ImageURL:  item.ImageURL,
		Color:     item.Color,
		Size:      item.Size,
	}
}

// Repository exposes persistence operations for authenticated cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var upsertConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "profile_id"},
		{Name: "product_id"},
		{Name: "variant_id"},
	},
	DoUpdates: clause.AssignmentColumns([]string{
		"quantity", "name", "price", "image_url", "color", "size", "updated_at",
	}),
}

// FetchAll loads every cart line for the profile in insertion order.
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

// Upsert inserts the line or refreshes its quantity and metadata when the
// (profile, product, variant) key already exists.
func (r *Repository) Upsert(ctx context.Context, profileID int64, item Item) error {
	record := recordFrom(profileID, item)
	record.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(upsertConflict).
		Create(&record).Error
}

// Remove deletes one line. Removing an absent line is a no-op.
func (r *Repository) Remove(ctx context.Context, profileID int64, productID, variantID string) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ? AND product_id = ? AND variant_id = ?", profileID, productID, variantID).
		Delete(&Record{}).Error
}

// ClearAll deletes every line for the profile.
func (r *Repository) ClearAll(ctx context.Context, profileID int64) error {
	return r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Delete(&Record{}).Error
}
