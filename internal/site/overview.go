package site

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/ppe"
	"siteguard/pkg/log"
)

const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// ResultSource returns the latest persisted run of a site.
type ResultSource interface {
	Latest(siteId string) (*dao.AnalysisResult, error)
}

// Overview aggregates the latest run of every site. Sites without a readable
// run are reported with a simulated placeholder, flagged as such.
type Overview struct {
	registry *Registry
	results  ResultSource
	simulate func(siteId string) *dao.AnalysisResult
	logger   *logrus.Entry
}

func NewOverview(ctx context.Context, registry *Registry, results ResultSource, simulate func(siteId string) *dao.AnalysisResult) *Overview {
	return &Overview{
		registry: registry,
		results:  results,
		simulate: simulate,
		logger:   log.ComponentLogger(ctx, "overview"),
	}
}

func (o *Overview) Registry() *Registry {
	return o.registry
}

// Result never fails: missing or malformed state falls back to simulated output.
func (o *Overview) Result(siteId string) *dao.AnalysisResult {
	res, err := o.results.Latest(siteId)
	if err == nil {
		return res
	}
	if errors.Is(err, ppe.ErrMalformedState) {
		o.logger.WithError(err).Debugf("no usable results for %s, serving simulated data", siteId)
	} else {
		o.logger.WithError(err).Warnf("load results for %s", siteId)
	}
	return o.simulate(siteId)
}

// RiskScore maps compliance 0..100 to a 0..10 risk score.
func RiskScore(compliance int) float64 {
	return float64(100-compliance) / 10
}

func RiskLevel(score float64) string {
	switch {
	case score >= 7:
		return RiskHigh
	case score >= 4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (o *Overview) Site(s config.SiteConfig) *dao.SiteSpec {
	res := o.Result(s.Id)
	alerts := dao.GroupAlerts(res.Alerts)
	score := RiskScore(res.ComplianceScore)
	spec := &dao.SiteSpec{
		Id:           s.Id,
		Name:         s.Name,
		Location:     s.Location,
		RiskLevel:    RiskLevel(score),
		RiskScore:    score,
		Compliance:   res.ComplianceScore,
		Workers:      s.Workers,
		AiCameras:    s.Cameras,
		ActiveAlerts: alerts.Total(),
		Simulated:    res.Simulated,
		Alerts:       alerts,
	}
	if !res.AnalysisTimestamp.IsZero() {
		t := res.AnalysisTimestamp
		spec.LastCheck = &t
	}
	return spec
}

func (o *Overview) Sites() []*dao.SiteSpec {
	specs := make([]*dao.SiteSpec, 0, len(o.registry.Sites()))
	for _, s := range o.registry.Sites() {
		specs = append(specs, o.Site(s))
	}
	return specs
}

func (o *Overview) Dashboard(totalRuns int, now time.Time) *dao.DashboardSummary {
	sum := &dao.DashboardSummary{
		TotalRuns:   totalRuns,
		LastUpdated: now,
	}
	totalCompliance := 0
	for _, s := range o.Sites() {
		sum.TotalSites++
		sum.TotalWorkers += s.Workers
		sum.TotalCameras += s.AiCameras
		sum.CriticalAlerts += len(s.Alerts.Critical)
		sum.WarningAlerts += len(s.Alerts.Warning)
		sum.InfoAlerts += len(s.Alerts.Info)
		totalCompliance += s.Compliance
		if s.RiskLevel == RiskHigh {
			sum.HighRiskSites++
		}
		if s.Simulated {
			sum.SimulatedSites++
		}
	}
	sum.TotalAlerts = sum.CriticalAlerts + sum.WarningAlerts + sum.InfoAlerts
	if sum.TotalSites > 0 {
		sum.AverageCompliance = math.Round(float64(totalCompliance)/float64(sum.TotalSites)*10) / 10
	}
	return sum
}
