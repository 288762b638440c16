package recorder

import "CryptoLens/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAnalysis(_ *AnalysisRecord) error     { return nil }
func (n *NoopRecorder) RecordAttempt(_ *model.FetchAttempt) error { return nil }
func (n *NoopRecorder) RecentAnalyses(_, _ string, _ int) ([]AnalysisRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
