package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	domainerrors "github.com/veilapp/veil-server/internal/errors"
	"github.com/veilapp/veil-server/internal/validation"
)

type restrictionRequest struct {
	EntityType string   `json:"entity_type" validate:"required,oneof=tag studio performer group gallery"`
	InstanceID string   `json:"instance_id" validate:"required"`
	Mode       string   `json:"mode" validate:"required,oneof=EXCLUDE INCLUDE"`
	EntityIDs  []string `json:"entity_ids" validate:"required"`
	Depth      int      `json:"depth" validate:"gte=-1"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := restrictionRequest{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"tag-1"},
		Depth:      0,
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	valid := restrictionRequest{
		EntityType: "tag",
		InstanceID: "inst-1",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"tag-1"},
	}

	tests := []struct {
		name       string
		mutate     func(*restrictionRequest)
		wantErrMsg string
	}{
		{
			name:       "missing instance",
			mutate:     func(r *restrictionRequest) { r.InstanceID = "" },
			wantErrMsg: "instance_id",
		},
		{
			name:       "unknown restriction mode",
			mutate:     func(r *restrictionRequest) { r.Mode = "ALLOW" },
			wantErrMsg: "mode",
		},
		{
			name:       "non-restrictable entity type",
			mutate:     func(r *restrictionRequest) { r.EntityType = "scene" },
			wantErrMsg: "entity_type",
		},
		{
			name:       "depth below unlimited sentinel",
			mutate:     func(r *restrictionRequest) { r.Depth = -2 },
			wantErrMsg: "depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := v.Validate(req)
			assert.Error(t, err)

			var domainErr *domainerrors.Error
			if assert.True(t, domainerrors.As(err, &domainErr)) {
				assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
				fields, ok := domainErr.Details.(map[string]string)
				if assert.True(t, ok, "details should carry field errors") {
					assert.Contains(t, fields, tt.wantErrMsg)
				}
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := restrictionRequest{
		EntityType: "tag",
		Mode:       "EXCLUDE",
		EntityIDs:  []string{"tag-1"},
	}

	err := v.Validate(req)
	assert.Error(t, err)

	// Should use JSON tag name "instance_id", not struct field name.
	assert.NotContains(t, err.Error(), "InstanceID")
}
