package dao

import "time"

type SiteSpec struct {
	Id           string      `json:"id"`
	Name         string      `json:"name"`
	Location     string      `json:"location"`
	RiskLevel    string      `json:"riskLevel"`
	RiskScore    float64     `json:"riskScore"`
	Compliance   int         `json:"compliance"`
	Workers      int         `json:"workers"`
	AiCameras    int         `json:"aiCameras"`
	ActiveAlerts int         `json:"activeAlerts"`
	LastCheck    *time.Time  `json:"lastCheck,omitempty"`
	Simulated    bool        `json:"simulated"`
	Alerts       *SiteAlerts `json:"alerts,omitempty"`
}

type ListAlertsResponse struct {
	Sites []*SiteSpec `json:"sites"`
	Total int         `json:"total"`
}

type SiteAlertsByTypeResponse struct {
	SiteId    string   `json:"siteId"`
	Type      Severity `json:"type"`
	Alerts    []*Alert `json:"alerts"`
	Total     int      `json:"total"`
	Simulated bool     `json:"simulated"`
}

type ListSitesResponse struct {
	Items []*SiteSpec `json:"items"`
	Total int         `json:"total"`
}

type DashboardSummary struct {
	TotalSites        int       `json:"totalSites"`
	TotalWorkers      int       `json:"totalWorkers"`
	TotalCameras      int       `json:"totalCameras"`
	TotalAlerts       int       `json:"totalAlerts"`
	CriticalAlerts    int       `json:"criticalAlerts"`
	WarningAlerts     int       `json:"warningAlerts"`
	InfoAlerts        int       `json:"infoAlerts"`
	AverageCompliance float64   `json:"averageCompliance"`
	HighRiskSites     int       `json:"highRiskSites"`
	SimulatedSites    int       `json:"simulatedSites"`
	TotalRuns         int       `json:"totalRuns"`
	LastUpdated       time.Time `json:"lastUpdated"`
}
