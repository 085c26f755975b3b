package templates

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

// Template is a saved prediction setup that can be started with one command.
type Template struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Outcomes  []string  `gorm:"serializer:json;not null" json:"outcomes"`
	Duration  int       `gorm:"not null;default:90" json:"duration"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Template) TableName() string {
	return "prediction_templates"
}

func (t Template) WithDefaults() Template {
	if t.Duration == 0 {
		t.Duration = types.DefaultPredictionWindow
	}
	return t
}

func (t Template) Validate() error {
	var result *multierror.Error
	if l := twitch.TextLength(t.Title); l == 0 || l > types.MaxPredictionTitleLength {
		result = multierror.Append(result, fmt.Errorf("title length is %d, expected 1..%d", l, types.MaxPredictionTitleLength))
	}
	if len(t.Outcomes) < types.MinOutcomes || len(t.Outcomes) > types.MaxOutcomes {
		result = multierror.Append(result, fmt.Errorf("the amount of outcomes is %d, expected %d..%d", len(t.Outcomes), types.MinOutcomes, types.MaxOutcomes))
	}
	if t.Duration < types.MinPredictionWindow || t.Duration > types.MaxPredictionWindow {
		result = multierror.Append(result, fmt.Errorf("duration is %d, expected %d..%d", t.Duration, types.MinPredictionWindow, types.MaxPredictionWindow))
	}
	return result.ErrorOrNil()
}

func (t Template) Prediction(broadcasterID string) types.Prediction {
	return types.NewPrediction(broadcasterID, t.Title, t.Outcomes, t.Duration)
}
