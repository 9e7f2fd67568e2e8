package dao

import (
	"fmt"
	"time"
)

// Category is a PPE category a detection can be counted towards.
type Category string

const (
	CategoryHeadCovering Category = "head_covering"
	CategoryFaceCovering Category = "face_covering"
	CategoryVest         Category = "vest"
)

// Categories is the matching priority: a detection counts towards the first category it matches.
var Categories = []Category{CategoryHeadCovering, CategoryFaceCovering, CategoryVest}

// ComplianceSample is the classification of one sampled frame.
type ComplianceSample struct {
	Frame     int               `json:"frame"`
	Time      float64           `json:"time_s"`
	Present   map[Category]bool `json:"present"`
	Counts    map[Category]int  `json:"counts"`
	Simulated bool              `json:"simulated"`
}

type AlertType string

const (
	AlertTypeNoHelmet    AlertType = "NoHelmetDetected"
	AlertTypeMaskMissing AlertType = "FaceMaskMissing"
	AlertTypeVestMissing AlertType = "SafetyVestMissing"
)

func AlertTypeFor(c Category) AlertType {
	switch c {
	case CategoryHeadCovering:
		return AlertTypeNoHelmet
	case CategoryFaceCovering:
		return AlertTypeMaskMissing
	default:
		return AlertTypeVestMissing
	}
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if string(sev) == s {
			return sev, nil
		}
	}
	return "", fmt.Errorf("invalid alert type %q, expect one of critical, warning, info", s)
}

func (t AlertType) Severity() Severity {
	switch t {
	case AlertTypeNoHelmet:
		return SeverityCritical
	case AlertTypeVestMissing:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

type Alert struct {
	Id       string    `json:"id"`
	Type     AlertType `json:"type"`
	Severity Severity  `json:"severity"`
	// Timestamp is derived from the frame position and the video length, not from capture time.
	Timestamp          time.Time `json:"timestamp"`
	TimestampEstimated bool      `json:"timestampEstimated"`
	Description        string    `json:"description"`
	Confidence         float32   `json:"confidence"`
	Frame              int       `json:"frame"`
	VideoTime          float64   `json:"video_time"`
	Image              string    `json:"image,omitempty"`
}

type SiteAlerts struct {
	Critical []*Alert `json:"critical"`
	Warning  []*Alert `json:"warning"`
	Info     []*Alert `json:"info"`
}

func GroupAlerts(alerts []*Alert) *SiteAlerts {
	g := &SiteAlerts{
		Critical: make([]*Alert, 0),
		Warning:  make([]*Alert, 0),
		Info:     make([]*Alert, 0),
	}
	for _, a := range alerts {
		switch a.Type.Severity() {
		case SeverityCritical:
			g.Critical = append(g.Critical, a)
		case SeverityWarning:
			g.Warning = append(g.Warning, a)
		default:
			g.Info = append(g.Info, a)
		}
	}
	return g
}

func (g *SiteAlerts) Of(sev Severity) []*Alert {
	switch sev {
	case SeverityCritical:
		return g.Critical
	case SeverityWarning:
		return g.Warning
	default:
		return g.Info
	}
}

func (g *SiteAlerts) Total() int {
	return len(g.Critical) + len(g.Warning) + len(g.Info)
}
