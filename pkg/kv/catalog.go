package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

// catalogEntry pins the declared value type of every table in the database.
// Reopening a table under a different value type is refused before any data
// operation instead of silently mixing wire forms.
type catalogEntry struct {
	Table     string         `gorm:"column:table_name;primaryKey;size:255"`
	ValueType string         `gorm:"column:value_type;size:32;not null"`
	Affinity  string         `gorm:"column:affinity;size:32;not null"`
	Details   datatypes.JSON `gorm:"column:details"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (catalogEntry) TableName() string { return "kv_catalog" }

func (s *Store) ensureCatalog(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&catalogEntry{}); err != nil {
		return kverrors.Wrap(err, "migrate catalog table")
	}

	var existing catalogEntry
	err := db.WithContext(ctx).Take(&existing, "table_name = ?", s.cfg.Table).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.registerTable(ctx, db)
	case err != nil:
		return kverrors.Wrap(err, "read catalog")
	}

	if existing.ValueType != s.codec.Type().String() {
		return kverrors.ErrCodecMismatch.WithMessage(fmt.Sprintf(
			"table %s is registered as %s but configured as %s",
			s.cfg.Table, existing.ValueType, s.codec.Type()))
	}
	return nil
}

func (s *Store) registerTable(ctx context.Context, db *gorm.DB) error {
	details, err := json.Marshal(map[string]any{
		"dialect":   db.Dialector.Name(),
		"key_limit": MaxKeyLength,
	})
	if err != nil {
		return kverrors.Wrap(err, "encode catalog details")
	}

	entry := catalogEntry{
		Table:     s.cfg.Table,
		ValueType: s.codec.Type().String(),
		Affinity:  s.codec.Affinity().String(),
		Details:   datatypes.JSON(details),
	}

	// DoNothing leaves the first writer's row in place if two openers race.
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil {
		return kverrors.Wrap(err, "register table in catalog")
	}
	return nil
}
