package twitch

import (
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
	"golang.org/x/text/unicode/norm"
)

// TextLength is the length of a title as Twitch counts it: in characters
// of the NFC form.
func TextLength(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// ValidatePrediction checks the prediction against the limits Twitch
// enforces, reporting all the violations at once.
func ValidatePrediction(p types.Prediction) error {
	var result *multierror.Error

	if p.BroadcasterID == "" {
		result = multierror.Append(result, fmt.Errorf("broadcaster_id is empty"))
	}

	titleLen := TextLength(p.Title)
	if titleLen == 0 || titleLen > types.MaxPredictionTitleLength {
		result = multierror.Append(result, fmt.Errorf(
			"title length is %d, expected 1..%d",
			titleLen, types.MaxPredictionTitleLength,
		))
	}

	if len(p.Outcomes) < types.MinOutcomes || len(p.Outcomes) > types.MaxOutcomes {
		result = multierror.Append(result, fmt.Errorf(
			"the amount of outcomes is %d, expected %d..%d",
			len(p.Outcomes), types.MinOutcomes, types.MaxOutcomes,
		))
	}
	for idx, outcome := range p.Outcomes {
		l := TextLength(outcome.Title)
		if l == 0 || l > types.MaxOutcomeTitleLength {
			result = multierror.Append(result, fmt.Errorf(
				"outcome #%d title length is %d, expected 1..%d",
				idx, l, types.MaxOutcomeTitleLength,
			))
		}
	}

	if p.PredictionWindow < types.MinPredictionWindow || p.PredictionWindow > types.MaxPredictionWindow {
		result = multierror.Append(result, fmt.Errorf(
			"prediction_window is %d, expected %d..%d",
			p.PredictionWindow, types.MinPredictionWindow, types.MaxPredictionWindow,
		))
	}

	if err := result.ErrorOrNil(); err != nil {
		return ErrInvalidPrediction{Err: err}
	}
	return nil
}
