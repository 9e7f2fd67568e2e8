package dao

import "time"

type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateRunning    RunState = "running"
	RunStateFinalizing RunState = "finalizing"
	RunStateComplete   RunState = "complete"
	RunStateFailed     RunState = "failed"
)

const (
	// StatusMeasured marks results produced by a real detector.
	StatusMeasured = "measured"
	// StatusSimulatedDetection marks a decoded video classified by a stand-in detector.
	StatusSimulatedDetection = "simulated_detection"
	// StatusSimulatedDemo marks canned placeholder output, nothing was decoded.
	StatusSimulatedDemo = "simulated_demo_data"
)

type ViolationSummary struct {
	HelmetViolations int `json:"helmet_violations"`
	MaskViolations   int `json:"mask_violations"`
	VestViolations   int `json:"vest_violations"`
	TotalViolations  int `json:"total_violations"`
}

// SiteAssignment records how a site id was derived from a file name.
type SiteAssignment struct {
	SiteId   string `json:"site_id"`
	Rule     string `json:"rule"`
	Fallback bool   `json:"fallback"`
}

type AnalysisResult struct {
	RunId                string           `json:"run_id"`
	SiteId               string           `json:"site_id"`
	VideoPath            string           `json:"video_path"`
	State                RunState         `json:"state"`
	StartedAt            time.Time        `json:"started_at"`
	AnalysisTimestamp    time.Time        `json:"analysis_timestamp"`
	TotalFramesProcessed int              `json:"total_frames_processed"`
	SampledFrames        int              `json:"sampled_frames"`
	SkippedSamples       int              `json:"skipped_samples"`
	TotalViolations      int              `json:"total_violations"`
	ComplianceScore      int              `json:"compliance_score"`
	Alerts               []*Alert         `json:"alerts"`
	CsvLog               string           `json:"csv_log,omitempty"`
	SummaryPath          string           `json:"summary_path,omitempty"`
	Summary              ViolationSummary `json:"summary"`
	Detector             string           `json:"detector"`
	Simulated            bool             `json:"simulated"`
	Status               string           `json:"status"`
	Error                string           `json:"error,omitempty"`
	Assignment           *SiteAssignment  `json:"site_assignment,omitempty"`
}

type AnalyzeErrorResponse struct {
	Error  string          `json:"error"`
	Result *AnalysisResult `json:"result,omitempty"`
}
