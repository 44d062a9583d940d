package execution

import (
	"strings"

	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type StepUpdateDTO struct {
	Result       string `json:"result" validate:"required,oneof=PENDING PASSED FAILED BLOCKED"`
	ActualResult string `json:"actual_result" validate:"max=4000"`
}

func (d *StepUpdateDTO) Ok() (map[string]string, bool) {
	d.ActualResult = strings.TrimSpace(d.ActualResult)
	return serrors.CheckStruct(constants.Validate, d)
}

// CompleteDTO submits an overall result. PENDING is not a completion.
type CompleteDTO struct {
	Result string `json:"result" validate:"required,oneof=PASSED FAILED BLOCKED PARTIALLY_PASSED"`
	Notes  string `json:"notes" validate:"max=4000"`
}

func (d *CompleteDTO) Ok() (map[string]string, bool) {
	d.Notes = strings.TrimSpace(d.Notes)
	return serrors.CheckStruct(constants.Validate, d)
}
