package ppe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/config"
	"siteguard/internal/dao"
)

func defaultClassifier() *Classifier {
	conf := config.DefaultConfig()
	return NewClassifier(conf.Detector.ConfThreshold, map[dao.Category][]string{
		dao.CategoryHeadCovering: conf.Classifier.HeadCovering,
		dao.CategoryFaceCovering: conf.Classifier.FaceCovering,
		dao.CategoryVest:         conf.Classifier.Vest,
	})
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "hard hat", NormalizeLabel("Hard-Hat"))
	assert.Equal(t, "hi vis vest", NormalizeLabel("  Hi_Vis  VEST!! "))
	assert.Equal(t, "", NormalizeLabel("---"))
}

func TestClassifyDropsLowConfidence(t *testing.T) {
	c := defaultClassifier()
	for conf := float32(0); conf < c.Threshold(); conf += 0.01 {
		boxes := []*dao.DetectionBox{
			{Label: "helmet", Confidence: conf},
			{Label: "face mask", Confidence: conf},
			{Label: "safety vest", Confidence: conf},
		}
		s := c.Classify(30, 1, boxes)
		for _, cat := range dao.Categories {
			assert.Zero(t, s.Counts[cat], "confidence %.2f counted towards %s", conf, cat)
			assert.False(t, s.Present[cat])
		}
	}

	s := c.Classify(30, 1, []*dao.DetectionBox{{Label: "helmet", Confidence: c.Threshold()}})
	assert.Equal(t, 1, s.Counts[dao.CategoryHeadCovering])
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	c := defaultClassifier()
	s := c.Classify(0, 0, []*dao.DetectionBox{
		{Label: "Helmet with mask", Confidence: 0.9},
		{Label: "Reflective-Vest", Confidence: 0.8},
		{Label: "person", Confidence: 0.99},
		nil,
	})
	assert.Equal(t, 1, s.Counts[dao.CategoryHeadCovering])
	assert.Equal(t, 0, s.Counts[dao.CategoryFaceCovering])
	assert.Equal(t, 1, s.Counts[dao.CategoryVest])
	assert.True(t, s.Present[dao.CategoryHeadCovering])
	assert.False(t, s.Present[dao.CategoryFaceCovering])
	assert.False(t, s.Simulated)
}

func TestAssumePresentIsFlagged(t *testing.T) {
	s := defaultClassifier().AssumePresent(60, 2)
	require.True(t, s.Simulated)
	for _, cat := range dao.Categories {
		assert.True(t, s.Present[cat])
	}
}
