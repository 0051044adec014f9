package regression

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/instantcocoa/rehoboam/services/catalog"
	"github.com/instantcocoa/rehoboam/services/evaluation"
)

const (
	defaultSampleWindow = 100
	defaultRecentWindow = 10

	// reportThreshold is the minimum absolute mean shift that counts as a
	// regression; highThreshold upgrades it to high severity.
	defaultReportThreshold = 0.1
	defaultHighThreshold   = 0.2
)

// ReportStatus describes the outcome of a regression check.
type ReportStatus string

const (
	// StatusOK means enough scored history existed to run the comparison.
	// The report may still contain zero regressions.
	StatusOK ReportStatus = "ok"

	// StatusNoData means no evaluations exist for the model and type.
	StatusNoData ReportStatus = "no_data"

	// StatusNoScores means evaluations exist but none have settled with scores.
	StatusNoScores ReportStatus = "no_scores"
)

// MetricShift describes the score movement of a single metric.
type MetricShift struct {
	PreviousScore float64
	CurrentScore  float64
	Difference    float64
	Severity      Severity
}

// Report is the result of a single regression check.
type Report struct {
	ModelID        string
	EvaluationType catalog.PromptType
	Status         ReportStatus
	Regressions    map[string]MetricShift
	SampleSize     int
}

// Detector compares recent evaluation scores against historical baselines.
// Construct one per process; it is safe for concurrent use.
type Detector struct {
	evals  evaluation.Store
	logs   Store
	logger *slog.Logger

	sampleWindow    int
	recentWindow    int
	reportThreshold float64
	highThreshold   float64
}

// NewDetector creates a detector with default window sizes and thresholds.
func NewDetector(evals evaluation.Store, logs Store, logger *slog.Logger) *Detector {
	return &Detector{
		evals:           evals,
		logs:            logs,
		logger:          logger.With("component", "regression"),
		sampleWindow:    defaultSampleWindow,
		recentWindow:    defaultRecentWindow,
		reportThreshold: defaultReportThreshold,
		highThreshold:   defaultHighThreshold,
	}
}

// Check compares the recent mean of every metric in the newest scored
// evaluation against the mean over the older portion of the sample window.
// Each metric whose shift exceeds the report threshold is recorded in the
// regression log and included in the returned report.
func (d *Detector) Check(ctx context.Context, modelID string, promptType catalog.PromptType) (*Report, error) {
	evals, err := d.evals.ListRecent(ctx, modelID, promptType, d.sampleWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation history: %w", err)
	}

	report := &Report{
		ModelID:        modelID,
		EvaluationType: promptType,
		Regressions:    make(map[string]MetricShift),
	}

	if len(evals) == 0 {
		report.Status = StatusNoData
		return report, nil
	}

	// Only settled evaluations carry scores; pending and failed rows count
	// toward no_scores but never toward the baselines.
	scored := make([]map[string]float64, 0, len(evals))
	for _, e := range evals {
		if len(e.Scores) > 0 {
			scored = append(scored, e.Scores)
		}
	}
	if len(scored) == 0 {
		report.Status = StatusNoScores
		return report, nil
	}

	report.Status = StatusOK
	report.SampleSize = len(scored)

	// The historical baseline excludes the newest recentWindow samples, so a
	// shift needs at least recentWindow+1 scored records before it can show.
	if len(scored) <= d.recentWindow {
		return report, nil
	}
	historical := scored[d.recentWindow:]

	now := time.Now()
	for metric := range scored[0] {
		recentMean, ok := metricMean(scored, metric)
		if !ok {
			continue
		}
		historicalMean, ok := metricMean(historical, metric)
		if !ok {
			continue
		}

		diff := recentMean - historicalMean
		if math.Abs(diff) <= d.reportThreshold {
			continue
		}

		severity := SeverityMedium
		if math.Abs(diff) > d.highThreshold {
			severity = SeverityHigh
		}

		report.Regressions[metric] = MetricShift{
			PreviousScore: historicalMean,
			CurrentScore:  recentMean,
			Difference:    diff,
			Severity:      severity,
		}
	}

	if len(report.Regressions) > 0 {
		// One append for the whole check so a storage failure never
		// leaves a partial set of entries behind.
		entries := make([]*RegressionLog, 0, len(report.Regressions))
		for metric, shift := range report.Regressions {
			entries = append(entries, &RegressionLog{
				ID:             uuid.New().String(),
				ModelID:        modelID,
				EvaluationType: promptType,
				Metric:         metric,
				PreviousScore:  shift.PreviousScore,
				CurrentScore:   shift.CurrentScore,
				Difference:     shift.Difference,
				Severity:       shift.Severity,
				CreatedAt:      now,
			})
		}
		if err := d.logs.Append(ctx, entries...); err != nil {
			return nil, fmt.Errorf("failed to record regressions: %w", err)
		}
		for metric, shift := range report.Regressions {
			d.logger.Warn("regression detected",
				"model_id", modelID,
				"type", string(promptType),
				"metric", metric,
				"difference", shift.Difference,
				"severity", string(shift.Severity))
		}
	}

	return report, nil
}

// metricMean averages a metric over the score maps that carry it. The second
// return is false when no map in the window carries the metric.
func metricMean(scores []map[string]float64, metric string) (float64, bool) {
	var sum float64
	var n int
	for _, s := range scores {
		if v, ok := s[metric]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
