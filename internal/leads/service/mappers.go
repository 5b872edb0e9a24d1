package service

import (
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/platform/sanitize"
)

// ToLeadResponse renders a lead for the API, including its pipeline progress.
func ToLeadResponse(pipeline *domain.Pipeline, lead domain.Lead) transport.LeadResponse {
	progress, _ := pipeline.ProgressPercentage(lead.CurrentStage)

	history := make([]transport.StageChangeResponse, 0, len(lead.StageHistory))
	for _, entry := range lead.StageHistory {
		history = append(history, transport.StageChangeResponse{
			FromStage: entry.FromStage,
			ToStage:   entry.ToStage,
			ChangedAt: entry.ChangedAt,
			Notes:     entry.Notes,
		})
	}

	return transport.LeadResponse{
		ID:             lead.ID,
		Name:           lead.Name,
		Email:          lead.Email,
		Company:        lead.Company,
		Status:         lead.Status,
		Engaged:        lead.Engaged,
		CurrentStage:   lead.CurrentStage,
		Progress:       progress,
		StageUpdatedAt: lead.StageUpdatedAt,
		LastContacted:  lead.LastContacted,
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
		StageHistory:   history,
	}
}

func toLeadResponses(pipeline *domain.Pipeline, leads []domain.Lead) []transport.LeadResponse {
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(pipeline, lead))
	}
	return out
}

// toPatch strips markup from free-text fields; the rest pass through.
func toPatch(req transport.UpdateLeadRequest) domain.Patch {
	return domain.Patch{
		Name:         sanitize.TextPtr(req.Name),
		Email:        req.Email,
		Company:      sanitize.TextPtr(req.Company),
		Status:       sanitize.TextPtr(req.Status),
		Engaged:      req.Engaged,
		CurrentStage: req.CurrentStage,
		LastContacted: domain.OptionalTime{
			Value: req.LastContacted.Value,
			Set:   req.LastContacted.Set,
		},
	}
}

func toNewLeadInput(req transport.CreateLeadRequest) domain.NewLeadInput {
	return domain.NewLeadInput{
		Name:          sanitize.Text(req.Name),
		Email:         req.Email,
		Company:       sanitize.Text(req.Company),
		Status:        sanitize.Text(req.Status),
		Engaged:       req.Engaged,
		CurrentStage:  req.CurrentStage,
		LastContacted: req.LastContacted,
	}
}
