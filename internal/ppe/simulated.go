package ppe

import (
	"time"

	"github.com/google/uuid"

	"siteguard/internal/dao"
)

// SimulatedResult is the placeholder served when nothing could be decoded or no run exists yet.
// It is flagged simulated and must never be read as a measurement.
func SimulatedResult(siteId string, now time.Time, policy AlertPolicy) *dao.AnalysisResult {
	alerts := []*dao.Alert{
		{
			Id:                 uuid.NewString(),
			Type:               dao.AlertTypeNoHelmet,
			Severity:           dao.AlertTypeNoHelmet.Severity(),
			Timestamp:          now.Add(-15 * time.Minute),
			TimestampEstimated: true,
			Description:        "Worker detected without helmet on scaffolding zone",
			Confidence:         0.96,
		},
		{
			Id:                 uuid.NewString(),
			Type:               dao.AlertTypeVestMissing,
			Severity:           dao.AlertTypeVestMissing.Severity(),
			Timestamp:          now.Add(-8 * time.Minute),
			TimestampEstimated: true,
			Description:        "Worker without safety vest near heavy machinery",
			Confidence:         0.91,
		},
	}
	summary := dao.ViolationSummary{
		HelmetViolations: 4,
		VestViolations:   3,
		TotalViolations:  7,
	}
	return &dao.AnalysisResult{
		RunId:                uuid.NewString(),
		SiteId:               siteId,
		VideoPath:            "simulated",
		State:                dao.RunStateComplete,
		StartedAt:            now,
		AnalysisTimestamp:    now,
		TotalFramesProcessed: 1500,
		TotalViolations:      summary.TotalViolations,
		ComplianceScore:      policy.Score(summary.TotalViolations),
		Alerts:               alerts,
		Summary:              summary,
		Detector:             "none",
		Simulated:            true,
		Status:               dao.StatusSimulatedDemo,
	}
}
