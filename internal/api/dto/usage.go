package dto

import (
	"github.com/platformhq/licensing/internal/types"
	"github.com/platformhq/licensing/internal/validator"
)

type TrackUsageRequest struct {
	FeatureCode string         `json:"feature_code" validate:"required"`
	Value       int64          `json:"value"`
	Metadata    types.Metadata `json:"metadata,omitempty"`
}

func (r *TrackUsageRequest) Validate() error {
	return validator.ValidateRequest(r)
}
