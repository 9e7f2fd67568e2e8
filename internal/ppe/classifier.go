package ppe

import (
	"regexp"
	"strings"

	"siteguard/internal/dao"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeLabel lowercases a class name and collapses every non alphanumeric run into one space.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(label), " "))
}

type categoryRule struct {
	category dao.Category
	synonyms []string
}

// Classifier maps detector labels onto PPE categories.
type Classifier struct {
	threshold float32
	rules     []categoryRule
}

// NewClassifier builds the rules in dao.Categories order; that order is the match priority.
func NewClassifier(threshold float32, synonyms map[dao.Category][]string) *Classifier {
	c := &Classifier{threshold: threshold}
	for _, cat := range dao.Categories {
		rule := categoryRule{category: cat}
		for _, s := range synonyms[cat] {
			if n := NormalizeLabel(s); n != "" {
				rule.synonyms = append(rule.synonyms, n)
			}
		}
		c.rules = append(c.rules, rule)
	}
	return c
}

func (c *Classifier) Threshold() float32 {
	return c.threshold
}

// Match returns the category a label counts towards.
func (c *Classifier) Match(label string) (dao.Category, bool) {
	norm := NormalizeLabel(label)
	if norm == "" {
		return "", false
	}
	for _, rule := range c.rules {
		for _, syn := range rule.synonyms {
			if strings.Contains(norm, syn) {
				return rule.category, true
			}
		}
	}
	return "", false
}

func newSample(frame int, t float64) dao.ComplianceSample {
	s := dao.ComplianceSample{
		Frame:   frame,
		Time:    t,
		Present: make(map[dao.Category]bool, len(dao.Categories)),
		Counts:  make(map[dao.Category]int, len(dao.Categories)),
	}
	for _, cat := range dao.Categories {
		s.Present[cat] = false
		s.Counts[cat] = 0
	}
	return s
}

// Classify counts detections at or above the confidence threshold per category.
func (c *Classifier) Classify(frame int, t float64, boxes []*dao.DetectionBox) dao.ComplianceSample {
	s := newSample(frame, t)
	for _, box := range boxes {
		if box == nil || box.Confidence < c.threshold {
			continue
		}
		if cat, ok := c.Match(box.Label); ok {
			s.Counts[cat]++
		}
	}
	for _, cat := range dao.Categories {
		s.Present[cat] = s.Counts[cat] > 0
	}
	return s
}

// AssumePresent is used when no detector is available. It is not a measurement.
func (c *Classifier) AssumePresent(frame int, t float64) dao.ComplianceSample {
	s := newSample(frame, t)
	for _, cat := range dao.Categories {
		s.Present[cat] = true
		s.Counts[cat] = 1
	}
	s.Simulated = true
	return s
}
