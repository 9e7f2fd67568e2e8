package ppe

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"siteguard/internal/config"
	"siteguard/internal/dao"
)

// AlertPolicy decides which missing categories raise an alert and how violations map to a score.
type AlertPolicy struct {
	// Intervals gates alerts per category: a missing category alerts only when
	// frame%interval == 0. An interval of 0 disables the category.
	Intervals  map[dao.Category]int
	Confidence map[dao.Category]float32
	Penalty    int
	MaxScore   int
	FloorScore int
}

func DefaultAlertPolicy() AlertPolicy {
	return NewAlertPolicy(config.DefaultConfig().Analysis.Policy)
}

func NewAlertPolicy(c config.AlertPolicyConfig) AlertPolicy {
	return AlertPolicy{
		Intervals: map[dao.Category]int{
			dao.CategoryHeadCovering: c.HeadInterval,
			dao.CategoryFaceCovering: c.FaceInterval,
			dao.CategoryVest:         c.VestInterval,
		},
		Confidence: map[dao.Category]float32{
			dao.CategoryHeadCovering: c.HeadConf,
			dao.CategoryFaceCovering: c.FaceConf,
			dao.CategoryVest:         c.VestConf,
		},
		Penalty:    c.Penalty,
		MaxScore:   c.MaxScore,
		FloorScore: c.FloorScore,
	}
}

// Checks reports whether a missing category at this frame raises an alert.
func (p AlertPolicy) Checks(cat dao.Category, frame int) bool {
	interval := p.Intervals[cat]
	return interval > 0 && frame%interval == 0
}

// Score is max - penalty*violations clamped to [floor, max], and always within [0, 100].
func (p AlertPolicy) Score(violations int) int {
	maxScore := min(max(p.MaxScore, 0), 100)
	floor := min(max(p.FloorScore, 0), maxScore)
	if violations <= 0 {
		return maxScore
	}
	// compare before multiplying so a huge violation count cannot overflow
	if p.Penalty > 0 && violations > (maxScore-floor)/p.Penalty {
		return floor
	}
	return max(maxScore-p.Penalty*violations, floor)
}

var descriptions = map[dao.AlertType]string{
	dao.AlertTypeNoHelmet:    "Worker detected without helmet at %.1fs",
	dao.AlertTypeMaskMissing: "Worker without face mask detected at %.1fs",
	dao.AlertTypeVestMissing: "Worker without safety vest detected at %.1fs",
}

// AlertGenerator accumulates the alerts of one analysis run.
type AlertGenerator struct {
	policy     AlertPolicy
	fps        float64
	frameCount int
	now        func() time.Time

	alerts  []*dao.Alert
	summary dao.ViolationSummary
}

// NewAlertGenerator needs the source frame rate and length to place alerts in wall-clock time.
// A frameCount of 0 means unknown length, alerts are then stamped with the current time.
func NewAlertGenerator(policy AlertPolicy, fps float64, frameCount int, now func() time.Time) *AlertGenerator {
	if now == nil {
		now = time.Now
	}
	return &AlertGenerator{
		policy:     policy,
		fps:        fps,
		frameCount: frameCount,
		now:        now,
	}
}

// Add evaluates one sample and returns the alerts it raised.
func (g *AlertGenerator) Add(s dao.ComplianceSample) []*dao.Alert {
	var raised []*dao.Alert
	for _, cat := range dao.Categories {
		if s.Present[cat] || !g.policy.Checks(cat, s.Frame) {
			continue
		}
		typ := dao.AlertTypeFor(cat)
		a := &dao.Alert{
			Id:                 uuid.NewString(),
			Type:               typ,
			Severity:           typ.Severity(),
			Timestamp:          g.estimate(s.Frame),
			TimestampEstimated: true,
			Description:        fmt.Sprintf(descriptions[typ], s.Time),
			Confidence:         g.policy.Confidence[cat],
			Frame:              s.Frame,
			VideoTime:          s.Time,
		}
		g.count(cat)
		g.alerts = append(g.alerts, a)
		raised = append(raised, a)
	}
	return raised
}

// estimate places a frame in wall-clock time by assuming the video ends now.
// It is an approximation, not the capture time.
func (g *AlertGenerator) estimate(frame int) time.Time {
	now := g.now()
	if g.fps <= 0 || g.frameCount <= 0 {
		return now
	}
	remaining := max(g.frameCount-frame, 0)
	return now.Add(-time.Duration(float64(remaining) / g.fps * float64(time.Second)))
}

func (g *AlertGenerator) count(cat dao.Category) {
	switch cat {
	case dao.CategoryHeadCovering:
		g.summary.HelmetViolations++
	case dao.CategoryFaceCovering:
		g.summary.MaskViolations++
	case dao.CategoryVest:
		g.summary.VestViolations++
	}
	g.summary.TotalViolations++
}

func (g *AlertGenerator) Violations() int {
	return g.summary.TotalViolations
}

func (g *AlertGenerator) Score() int {
	return g.policy.Score(g.summary.TotalViolations)
}

func (g *AlertGenerator) Alerts() []*dao.Alert {
	return g.alerts
}

// Last returns the n most recent alerts, oldest first.
func (g *AlertGenerator) Last(n int) []*dao.Alert {
	if n <= 0 || len(g.alerts) <= n {
		return append([]*dao.Alert{}, g.alerts...)
	}
	return append([]*dao.Alert{}, g.alerts[len(g.alerts)-n:]...)
}

func (g *AlertGenerator) Summary() dao.ViolationSummary {
	return g.summary
}
