package types

const (
	DefaultPredictionWindow = 90

	MinOutcomes              = 2
	MaxOutcomes              = 10
	MinPredictionWindow      = 1
	MaxPredictionWindow      = 1800
	MaxPredictionTitleLength = 45
	MaxOutcomeTitleLength    = 25
)

type PredictionStatus string

const (
	PredictionStatusActive   = PredictionStatus("ACTIVE")
	PredictionStatusLocked   = PredictionStatus("LOCKED")
	PredictionStatusResolved = PredictionStatus("RESOLVED")
	PredictionStatusCanceled = PredictionStatus("CANCELED")
)

// IsOpen reports whether a prediction can still be canceled or resolved.
func (s PredictionStatus) IsOpen() bool {
	return s == PredictionStatusActive || s == PredictionStatusLocked
}

type Outcome struct {
	Title string `json:"title"`
}

// Prediction is the payload of "create prediction".
type Prediction struct {
	BroadcasterID    string    `json:"broadcaster_id"`
	Title            string    `json:"title"`
	Outcomes         []Outcome `json:"outcomes"`
	PredictionWindow int       `json:"prediction_window"`
}

func NewPrediction(broadcasterID, title string, outcomes []string, window int) Prediction {
	p := Prediction{
		BroadcasterID:    broadcasterID,
		Title:            title,
		PredictionWindow: window,
	}
	for _, o := range outcomes {
		p.Outcomes = append(p.Outcomes, Outcome{Title: o})
	}
	return p
}

// WithDefaults returns a copy with an unset window replaced by DefaultPredictionWindow.
func (p Prediction) WithDefaults() Prediction {
	if p.PredictionWindow == 0 {
		p.PredictionWindow = DefaultPredictionWindow
	}
	return p
}

// PredictionStatusUpdate is the payload of "end prediction" (both cancel and resolve).
type PredictionStatusUpdate struct {
	BroadcasterID    string           `json:"broadcaster_id"`
	ID               string           `json:"id"`
	Status           PredictionStatus `json:"status"`
	WinningOutcomeID string           `json:"winning_outcome_id,omitempty"`
}

type OutcomeInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Users         int    `json:"users"`
	ChannelPoints int    `json:"channel_points"`
	Color         string `json:"color"`
}

// PredictionInfo is a prediction as reported by Twitch.
type PredictionInfo struct {
	ID               string           `json:"id"`
	BroadcasterID    string           `json:"broadcaster_id"`
	BroadcasterLogin string           `json:"broadcaster_login"`
	Title            string           `json:"title"`
	WinningOutcomeID string           `json:"winning_outcome_id"`
	Outcomes         []OutcomeInfo    `json:"outcomes"`
	PredictionWindow int              `json:"prediction_window"`
	Status           PredictionStatus `json:"status"`
	CreatedAt        string           `json:"created_at"`
	EndedAt          string           `json:"ended_at"`
	LockedAt         string           `json:"locked_at"`
}
