package predictctl

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/templates"
)

type LegacyImportResult struct {
	Settings  bool
	Templates int
}

// ImportLegacy takes over the settings (".env") and the saved predictions
// ("my_predictions.json") of the older versions from legacyDir. A missing
// file is skipped.
func (p *PredictCtl) ImportLegacy(
	ctx context.Context,
	legacyDir *appdata.Dir,
) (_ LegacyImportResult, _err error) {
	logger.Debugf(ctx, "ImportLegacy")
	defer func() { logger.Debugf(ctx, "/ImportLegacy: %v", _err) }()

	var result LegacyImportResult

	exists, err := legacyDir.Exists(config.LegacyFileName)
	if err != nil {
		return result, err
	}
	if exists {
		b, err := legacyDir.ReadFile(config.LegacyFileName)
		if err != nil {
			return result, err
		}
		legacy, err := config.FromDotEnv(b)
		if err != nil {
			return result, err
		}
		err = p.UpdateConfig(ctx, func(cfg *config.Config) error {
			legacy.TemplatesDB = cfg.TemplatesDB
			legacy.RecentPredictionsOn401 = cfg.RecentPredictionsOn401
			*cfg = legacy
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("unable to save the imported settings: %w", err)
		}
		result.Settings = true
	}

	exists, err = legacyDir.Exists(templates.LegacyFileName)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, nil
	}
	b, err := legacyDir.ReadFile(templates.LegacyFileName)
	if err != nil {
		return result, err
	}
	list, err := templates.ParseLegacy(b)
	if err != nil {
		return result, err
	}
	store, err := p.Templates(ctx)
	if err != nil {
		return result, err
	}
	imported, err := store.Import(ctx, list)
	if err != nil {
		return result, err
	}
	result.Templates = len(imported)
	return result, nil
}
