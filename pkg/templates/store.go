// Package templates stores prediction templates in a sqlite database.
package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("template not found")

type Store struct {
	db *gorm.DB
}

// Open opens (creating and migrating if needed) the database at dbPath.
func Open(
	ctx context.Context,
	dbPath string,
) (_ *Store, _err error) {
	logger.Debugf(ctx, "Open(%s)", dbPath)
	defer func() { logger.Debugf(ctx, "/Open(%s): %v", dbPath, _err) }()

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open the templates database '%s': %w", dbPath, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Template{}); err != nil {
		if sqlDB, _err := db.DB(); _err == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("unable to migrate the templates database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) List(ctx context.Context) ([]Template, error) {
	var result []Template
	if err := s.db.WithContext(ctx).Order("id").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("unable to list the templates: %w", err)
	}
	return result, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*Template, error) {
	var result Template
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("unable to get template %d: %w", id, err)
	}
	return &result, nil
}

func (s *Store) Add(ctx context.Context, t Template) (*Template, error) {
	t = t.WithDefaults()
	t.ID = 0
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("unable to add the template: %w", err)
	}
	logger.Debugf(ctx, "added template %d '%s'", t.ID, t.Title)
	return &t, nil
}

func (s *Store) Update(ctx context.Context, t Template) error {
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	res := s.db.WithContext(ctx).
		Model(&Template{}).
		Where("id = ?", t.ID).
		Select("title", "outcomes", "duration").
		Updates(&t)
	if res.Error != nil {
		return fmt.Errorf("unable to update template %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, t.ID)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Template{}, id)
	if res.Error != nil {
		return fmt.Errorf("unable to remove template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
