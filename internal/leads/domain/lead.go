package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusEngaged    = "Engaged"
	StatusNotEngaged = "Not Engaged"
)

// Lead is a sales prospect moving through the pipeline.
type Lead struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Company        string
	Status         string
	Engaged        bool
	CurrentStage   string
	StageUpdatedAt *time.Time
	LastContacted  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StageHistory   []StageChange
}

// NewLeadInput carries the caller supplied fields of a new lead.
// Empty Status and CurrentStage fall back to their defaults.
type NewLeadInput struct {
	Name          string
	Email         string
	Company       string
	Status        string
	Engaged       bool
	CurrentStage  string
	LastContacted *time.Time
}

// OptionalTime distinguishes an absent field (Set false) from an explicit
// null (Set true, Value nil).
type OptionalTime struct {
	Value *time.Time
	Set   bool
}

// Patch lists the fields an update may touch. Nil pointers are left alone.
type Patch struct {
	Name          *string
	Email         *string
	Company       *string
	Status        *string
	Engaged       *bool
	CurrentStage  *string
	LastContacted OptionalTime
}

// StatusFor derives the engagement status label.
func StatusFor(engaged bool) string {
	if engaged {
		return StatusEngaged
	}
	return StatusNotEngaged
}

// NormalizeEmail is the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewLead builds the initial state of a lead created at now. The id is left
// for storage to assign.
func (p *Pipeline) NewLead(input NewLeadInput, now time.Time) (Lead, error) {
	stage := input.CurrentStage
	if stage == "" {
		stage = p.First()
	}
	history, err := p.Genesis(stage, now)
	if err != nil {
		return Lead{}, err
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = StatusFor(input.Engaged)
	}

	stageAt := now
	return Lead{
		Name:           strings.TrimSpace(input.Name),
		Email:          NormalizeEmail(input.Email),
		Company:        strings.TrimSpace(input.Company),
		Status:         status,
		Engaged:        input.Engaged,
		CurrentStage:   stage,
		StageUpdatedAt: &stageAt,
		LastContacted:  input.LastContacted,
		CreatedAt:      now,
		UpdatedAt:      now,
		StageHistory:   history,
	}, nil
}

// ApplyPatch returns lead with patch applied at now. A stage change rewrites
// the history and stamps StageUpdatedAt; setting Engaged always overrides
// Status with the derived label.
func (p *Pipeline) ApplyPatch(lead Lead, patch Patch, now time.Time) (Lead, Direction, error) {
	next := lead
	direction := DirectionNone

	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		next.Email = NormalizeEmail(*patch.Email)
	}
	if patch.Company != nil {
		next.Company = strings.TrimSpace(*patch.Company)
	}
	if patch.Status != nil {
		next.Status = strings.TrimSpace(*patch.Status)
	}
	if patch.Engaged != nil {
		next.Engaged = *patch.Engaged
		next.Status = StatusFor(*patch.Engaged)
	}
	if patch.LastContacted.Set {
		next.LastContacted = patch.LastContacted.Value
	}
	if patch.CurrentStage != nil && *patch.CurrentStage != lead.CurrentStage {
		history, dir, err := p.Transition(lead.StageHistory, lead.CurrentStage, *patch.CurrentStage, now)
		if err != nil {
			return Lead{}, DirectionNone, err
		}
		stageAt := now
		next.CurrentStage = *patch.CurrentStage
		next.StageHistory = history
		next.StageUpdatedAt = &stageAt
		direction = dir
	}

	next.UpdatedAt = now
	return next, direction, nil
}
