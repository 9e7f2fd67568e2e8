package dao

type DetectionBox struct {
	X1         int     `json:"x1,omitempty"`
	Y1         int     `json:"y1,omitempty"`
	X2         int     `json:"x2,omitempty"`
	Y2         int     `json:"y2,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
	ClassId    int     `json:"classId,omitempty"`
	Label      string  `json:"label,omitempty"`
}

// RunEvent is published to NSQ once an analysis run has been persisted.
type RunEvent struct {
	RunId           string   `json:"runId"`
	SiteId          string   `json:"siteId"`
	State           RunState `json:"state"`
	Timestamp       int64    `json:"timestamp"`
	ComplianceScore int      `json:"complianceScore"`
	TotalViolations int      `json:"totalViolations"`
	Simulated       bool     `json:"simulated"`
	SummaryPath     string   `json:"summaryPath,omitempty"`
	CsvLog          string   `json:"csvLog,omitempty"`
	Alerts          []*Alert `json:"alerts,omitempty"`
}

func NewRunEvent(r *AnalysisResult) *RunEvent {
	return &RunEvent{
		RunId:           r.RunId,
		SiteId:          r.SiteId,
		State:           r.State,
		Timestamp:       r.AnalysisTimestamp.UnixNano(),
		ComplianceScore: r.ComplianceScore,
		TotalViolations: r.TotalViolations,
		Simulated:       r.Simulated,
		SummaryPath:     r.SummaryPath,
		CsvLog:          r.CsvLog,
		Alerts:          r.Alerts,
	}
}
