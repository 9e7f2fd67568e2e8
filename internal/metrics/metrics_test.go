package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/dao"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStreamsAndRuns(t *testing.T) {
	m := New()
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.StreamRejected()
	m.FrameStreamed()
	m.WatcherFile("dispatched")
	m.RunFinished(context.Background(), &dao.AnalysisResult{
		SiteId:          "SITE_001",
		State:           dao.RunStateComplete,
		ComplianceScore: 65,
		Summary:         dao.ViolationSummary{HelmetViolations: 4, VestViolations: 3, TotalViolations: 7},
	})

	body := scrape(t, m)
	assert.Contains(t, body, "siteguard_streams_active 1")
	assert.Contains(t, body, "siteguard_streams_total 2")
	assert.Contains(t, body, "siteguard_streams_rejected_total 1")
	assert.Contains(t, body, `siteguard_analysis_runs_total{simulated="false",state="complete"} 1`)
	assert.Contains(t, body, `siteguard_alerts_total{type="NoHelmetDetected"} 4`)
	assert.Contains(t, body, `siteguard_compliance_score{site="SITE_001"} 65`)
	assert.Contains(t, body, `siteguard_watcher_files_total{outcome="dispatched"} 1`)
}
