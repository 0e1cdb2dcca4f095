package model

import "time"

// EmotionalTrigger is the fixed set of emotional angles a campaign piece
// can lead with. Within one campaign, adjacent pieces never repeat a trigger.
type EmotionalTrigger string

const (
	TriggerTrust      EmotionalTrigger = "trust"
	TriggerCuriosity  EmotionalTrigger = "curiosity"
	TriggerUrgency    EmotionalTrigger = "urgency"
	TriggerAspiration EmotionalTrigger = "aspiration"
	TriggerBelonging  EmotionalTrigger = "belonging"
	TriggerRelief     EmotionalTrigger = "relief"
)

// AllTriggers lists every emotional trigger.
var AllTriggers = []EmotionalTrigger{
	TriggerTrust,
	TriggerCuriosity,
	TriggerUrgency,
	TriggerAspiration,
	TriggerBelonging,
	TriggerRelief,
}

// CampaignPurpose classifies campaign intent into one of six fixed purposes,
// which selects the template family.
type CampaignPurpose string

const (
	PurposeLaunch       CampaignPurpose = "launch"
	PurposeAwareness    CampaignPurpose = "awareness"
	PurposeEngagement   CampaignPurpose = "engagement"
	PurposeConversion   CampaignPurpose = "conversion"
	PurposeRetention    CampaignPurpose = "retention"
	PurposeReactivation CampaignPurpose = "reactivation"
)

// AllPurposes lists every campaign purpose.
var AllPurposes = []CampaignPurpose{
	PurposeLaunch,
	PurposeAwareness,
	PurposeEngagement,
	PurposeConversion,
	PurposeRetention,
	PurposeReactivation,
}

// CampaignStatus is the campaign lifecycle state.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusGenerated CampaignStatus = "generated"
	CampaignStatusApproved  CampaignStatus = "approved"
)

// CampaignPiece is one entry in a campaign's ordered sequence.
type CampaignPiece struct {
	ID        string           `json:"id"`
	Position  int              `json:"position"`
	Content   string           `json:"content"`
	Trigger   EmotionalTrigger `json:"trigger"`
	DayOffset int              `json:"day_offset"`
}

// Campaign owns an ordered, time-indexed sequence of pieces expanded from an
// approved value proposition.
type Campaign struct {
	ID           string          `json:"id"`
	SubjectID    string          `json:"subject_id"`
	SourceUVP    string          `json:"source_uvp_id"`
	Purpose      CampaignPurpose `json:"purpose"`
	Template     string          `json:"template"`
	Industry     string          `json:"industry,omitempty"`
	Status       CampaignStatus  `json:"status"`
	Pieces       []CampaignPiece `json:"pieces"`
	DurationDays int             `json:"duration_days"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
