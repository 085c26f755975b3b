package templates

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"gorm.io/gorm"
)

// LegacyFileName is the file the older versions of the application kept
// the saved predictions in.
const LegacyFileName = "my_predictions.json"

type legacyPrediction struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

// ParseLegacy parses the JSON array of the saved predictions of the older
// versions. The IDs are not kept.
func ParseLegacy(b []byte) ([]Template, error) {
	var entries []legacyPrediction
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("unable to parse the legacy predictions: %w", err)
	}
	result := make([]Template, 0, len(entries))
	for _, e := range entries {
		result = append(result, Template{
			Title:    e.Title,
			Outcomes: e.Options,
			Duration: e.Duration,
		}.WithDefaults())
	}
	return result, nil
}

// Import adds all the templates, or none of them if any is invalid.
func (s *Store) Import(ctx context.Context, list []Template) (_ []Template, _err error) {
	logger.Debugf(ctx, "Import(%d)", len(list))
	defer func() { logger.Debugf(ctx, "/Import(%d): %v", len(list), _err) }()

	result := make([]Template, 0, len(list))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, t := range list {
			t = t.WithDefaults()
			t.ID = 0
			if err := t.Validate(); err != nil {
				return fmt.Errorf("invalid template #%d '%s': %w", idx, t.Title, err)
			}
			if err := tx.Create(&t).Error; err != nil {
				return fmt.Errorf("unable to add template #%d: %w", idx, err)
			}
			result = append(result, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
