package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest is the body of POST /leads.
type CreateLeadRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=100"`
	Email         string     `json:"email" validate:"required,email,max=254"`
	Company       string     `json:"company" validate:"required,min=1,max=100"`
	Status        string     `json:"status" validate:"omitempty,max=50"`
	Engaged       bool       `json:"engaged"`
	CurrentStage  string     `json:"current_stage" validate:"omitempty,stage"`
	LastContacted *time.Time `json:"last_contacted"`
}

// UpdateLeadRequest is the body of PUT/PATCH /leads/:id. Only present fields change.
type UpdateLeadRequest struct {
	Name          *string      `json:"name" validate:"omitnil,min=1,max=100"`
	Email         *string      `json:"email" validate:"omitnil,email,max=254"`
	Company       *string      `json:"company" validate:"omitnil,min=1,max=100"`
	Status        *string      `json:"status" validate:"omitnil,max=50"`
	Engaged       *bool        `json:"engaged"`
	CurrentStage  *string      `json:"current_stage" validate:"omitnil,stage"`
	LastContacted OptionalTime `json:"last_contacted"`
}

// ListLeadsRequest carries the query string of GET /leads.
type ListLeadsRequest struct {
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy   string `form:"sort_by" validate:"omitempty,oneof=name company current_stage last_contacted created_at"`
	SortDesc *bool  `form:"sort_desc"`
	Search   string `form:"search" validate:"max=100"`
}

type StageChangeResponse struct {
	FromStage *string    `json:"from_stage"`
	ToStage   string     `json:"to_stage"`
	ChangedAt *time.Time `json:"changed_at"`
	Notes     string     `json:"notes,omitempty"`
}

type LeadResponse struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Email          string                `json:"email"`
	Company        string                `json:"company"`
	Status         string                `json:"status"`
	Engaged        bool                  `json:"engaged"`
	CurrentStage   string                `json:"current_stage"`
	Progress       int                   `json:"progress"`
	StageUpdatedAt *time.Time            `json:"stage_updated_at"`
	LastContacted  *time.Time            `json:"last_contacted"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	StageHistory   []StageChangeResponse `json:"stage_history"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

type StageResponse struct {
	Name     string `json:"name"`
	Index    int    `json:"index"`
	Progress int    `json:"progress"`
	IsLost   bool   `json:"is_lost"`
}

type StagesResponse struct {
	Stages []StageResponse `json:"stages"`
}
