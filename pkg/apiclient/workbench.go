package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
)

type ExecutionRef struct {
	ID            uuid.UUID `json:"id"`
	TestCaseID    uuid.UUID `json:"test_case_id"`
	TestCaseTitle string    `json:"test_case_title"`
	ProjectName   string    `json:"project_name"`
	ModuleID      uuid.UUID `json:"module_id"`
	ModuleName    string    `json:"module_name"`
	SubmoduleName string    `json:"submodule_name"`
	Overall       string    `json:"overall_result"`
	Position      int       `json:"position"`
	Total         int       `json:"total"`
}

type Summary struct {
	Total           int `json:"total"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Blocked         int `json:"blocked"`
	PartiallyPassed int `json:"partially_passed"`
	Pending         int `json:"pending"`
}

type Navigation struct {
	Execution        *ExecutionRef `json:"execution"`
	ModuleTransition bool          `json:"module_transition"`
	Completed        bool          `json:"completed"`
	AtBeginning      bool          `json:"at_beginning"`
	Summary          *Summary      `json:"summary,omitempty"`
}

type Execution struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	TestCaseID  uuid.UUID  `json:"test_case_id"`
	Overall     string     `json:"overall_result"`
	Notes       string     `json:"notes"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (c *Client) navigate(ctx context.Context, direction string, current uuid.UUID) (Navigation, error) {
	q := url.Values{}
	if current != uuid.Nil {
		q.Set("current", current.String())
	}
	var out Navigation
	err := c.do(ctx, http.MethodGet, constants.APIPrefix+"/workbench/"+direction, q, nil, &out)
	return out, err
}

// Next moves forward from current; uuid.Nil starts at the first execution.
func (c *Client) Next(ctx context.Context, current uuid.UUID) (Navigation, error) {
	return c.navigate(ctx, "next", current)
}

// Previous moves backward from current; uuid.Nil starts at the last execution.
func (c *Client) Previous(ctx context.Context, current uuid.UUID) (Navigation, error) {
	return c.navigate(ctx, "previous", current)
}

// Complete submits the overall result of an execution.
func (c *Client) Complete(ctx context.Context, id uuid.UUID, result, notes string) (Execution, error) {
	var out Execution
	err := c.do(ctx, http.MethodPut, constants.APIPrefix+"/executions/"+id.String()+"/complete", nil,
		map[string]string{"result": result, "notes": notes}, &out)
	return out, err
}

type Me struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Roles          []string  `json:"roles"`
	Capabilities   []string  `json:"capabilities"`
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	err := c.do(ctx, http.MethodGet, constants.APIPrefix+"/me", nil, nil, &out)
	return out, err
}
