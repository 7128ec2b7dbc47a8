package error_handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		want  int
	}{
		{"empty", nil, http.StatusOK},
		{"single validation", []int{CodeValidationError}, http.StatusBadRequest},
		{"highest wins", []int{CodeValidationError, CodeGatewayTimeout, CodeNotFound}, http.StatusGatewayTimeout},
		{"conflict", []int{CodeConflict}, http.StatusConflict},
		{"out of range code", []int{42}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := NewErrorCollection()
			for _, c := range tt.codes {
				ec.AddError(c, "x", nil)
			}
			assert.Equal(t, tt.want, ec.GetHTTPStatus())
		})
	}
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "", NewErrorCollection().Detail())
	assert.Equal(t, "output directory not found", NotFound("output directory not found").Detail())

	ec := Validation("latitude out of range").AddError(CodeValidationError, "building_type is required", nil)
	assert.Equal(t, "latitude out of range; building_type is required", ec.Detail())
}
