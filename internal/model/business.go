// Package model defines the domain types shared across the generation pipeline.
package model

import "time"

// Business represents the subject of a generation request: a small business
// identified by its website URL.
type Business struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Name         string `json:"name,omitempty"`
	IndustryHint string `json:"industry_hint,omitempty"`
}

// SiteContent is what the content provider returns for a URL: raw page
// texts plus the minimal structured metadata it could detect.
type SiteContent struct {
	Pages        []string `json:"pages"`
	BusinessName string   `json:"business_name,omitempty"`
	IndustryHint string   `json:"industry_hint,omitempty"`
}

// Empty reports whether no usable text was fetched.
func (c *SiteContent) Empty() bool {
	if c == nil {
		return true
	}
	for _, p := range c.Pages {
		if p != "" {
			return false
		}
	}
	return true
}

// RunStatus represents the current state of a generation run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusExtracting   RunStatus = "extracting"
	RunStatusSynthesizing RunStatus = "synthesizing"
	RunStatusScoring      RunStatus = "scoring"
	RunStatusEnhancing    RunStatus = "enhancing"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// Run represents a single UVP generation run for a business.
type Run struct {
	ID        string           `json:"id"`
	Business  Business         `json:"business"`
	Status    RunStatus        `json:"status"`
	Result    *SynthesisResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
