package model

import "time"

// AttemptOutcome classifies a single provider attempt.
type AttemptOutcome string

const (
	OutcomeOK       AttemptOutcome = "ok"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeRejected AttemptOutcome = "rejected"
	OutcomeSkipped  AttemptOutcome = "skipped"
)

// FetchAttempt records one provider call made by the orchestrator.
type FetchAttempt struct {
	Provider  string
	Pair      AssetPair
	Timeframe Timeframe
	Outcome   AttemptOutcome
	Err       error
	Duration  time.Duration
	At        time.Time
}

// TimeframeView is one row of a multi-timeframe analysis.
type TimeframeView struct {
	Timeframe      Timeframe      `json:"timeframe"`
	Trend          Trend          `json:"trend"`
	TrendStrength  float64        `json:"trend_strength"`
	RSI            float64        `json:"rsi"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Aligned        bool           `json:"aligned"`
}

// ConsensusStrength labels how strongly the timeframes agree.
type ConsensusStrength string

const (
	ConsensusStrong ConsensusStrength = "strong"
	ConsensusMedium ConsensusStrength = "medium"
	ConsensusWeak   ConsensusStrength = "weak"
)

// Consensus aggregates several TimeframeViews.
type Consensus struct {
	Direction Trend             `json:"direction"`
	Score     float64           `json:"score"` // 0 ~ 100
	Strength  ConsensusStrength `json:"strength"`
	Aligned   []Timeframe       `json:"aligned"`
	Views     []TimeframeView   `json:"views"`
}
