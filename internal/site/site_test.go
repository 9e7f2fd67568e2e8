package site

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/internal/ppe"
)

type fakeResults map[string]*dao.AnalysisResult

func (f fakeResults) Latest(siteId string) (*dao.AnalysisResult, error) {
	if r, ok := f[siteId]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: nothing for %s", ppe.ErrMalformedState, siteId)
}

func simulate(siteId string) *dao.AnalysisResult {
	return ppe.SimulatedResult(siteId, time.Now(), ppe.DefaultAlertPolicy())
}

func TestCanonicalAndLookup(t *testing.T) {
	assert.Equal(t, "SITE_001", Canonical("1"))
	assert.Equal(t, "SITE_001", Canonical("site-1"))
	assert.Equal(t, "SITE_012", Canonical("Site_012"))
	assert.Equal(t, "NORTH", Canonical("north"))

	r := NewRegistry(config.DefaultConfig().Sites)
	s, ok := r.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "Riverside Complex", s.Name)
	_, ok = r.Lookup("site_001")
	assert.True(t, ok)
	_, ok = r.Lookup("SITE_999")
	assert.False(t, ok)
	assert.Equal(t, []string{"SITE_001", "SITE_002", "SITE_003", "SITE_004"}, r.Ids())
}

func TestRisk(t *testing.T) {
	assert.Equal(t, 3.5, RiskScore(65))
	assert.Equal(t, RiskLow, RiskLevel(RiskScore(65)))
	assert.Equal(t, RiskMedium, RiskLevel(RiskScore(60)))
	assert.Equal(t, RiskHigh, RiskLevel(RiskScore(30)))
	assert.Equal(t, 10.0, RiskScore(0))
}

func TestOverviewMixesMeasuredAndSimulated(t *testing.T) {
	checked := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	results := fakeResults{
		"SITE_001": {
			SiteId:            "SITE_001",
			ComplianceScore:   20,
			AnalysisTimestamp: checked,
			Status:            dao.StatusMeasured,
			Alerts: []*dao.Alert{
				{Type: dao.AlertTypeNoHelmet},
				{Type: dao.AlertTypeNoHelmet},
				{Type: dao.AlertTypeVestMissing},
				{Type: dao.AlertTypeMaskMissing},
			},
		},
	}
	o := NewOverview(context.Background(), NewRegistry(config.DefaultConfig().Sites), results, simulate)

	sites := o.Sites()
	require.Len(t, sites, 4)
	first := sites[0]
	assert.Equal(t, "SITE_001", first.Id)
	assert.Equal(t, 20, first.Compliance)
	assert.Equal(t, RiskHigh, first.RiskLevel)
	assert.Equal(t, 4, first.ActiveAlerts)
	assert.Len(t, first.Alerts.Critical, 2)
	assert.False(t, first.Simulated)
	require.NotNil(t, first.LastCheck)
	assert.Equal(t, checked, *first.LastCheck)

	second := sites[1]
	assert.True(t, second.Simulated)
	assert.Equal(t, 65, second.Compliance)
	assert.Len(t, second.Alerts.Warning, 1)

	d := o.Dashboard(3, checked)
	assert.Equal(t, 4, d.TotalSites)
	assert.Equal(t, 165, d.TotalWorkers)
	assert.Equal(t, 45, d.TotalCameras)
	assert.Equal(t, 2+3, d.CriticalAlerts)
	assert.Equal(t, 1+3, d.WarningAlerts)
	assert.Equal(t, 1, d.InfoAlerts)
	assert.Equal(t, 10, d.TotalAlerts)
	assert.Equal(t, 1, d.HighRiskSites)
	assert.Equal(t, 3, d.SimulatedSites)
	assert.Equal(t, 53.8, d.AverageCompliance)
}
