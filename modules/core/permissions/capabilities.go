// Package permissions holds the single role -> capability table every role check
// goes through. The table is evaluated once from a casbin model and policy.
package permissions

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
)

type Capability string

const (
	// SeeAllInOrg bypasses assignment filtering inside the caller's organization.
	SeeAllInOrg       Capability = "see_all_in_org"
	ManageHierarchy   Capability = "manage_hierarchy"
	AuthorTestCases   Capability = "author_test_cases"
	ManageAssignments Capability = "manage_assignments"
	// Execute marks users that get executions provisioned from module assignments.
	Execute Capability = "execute"
)

var AllCapabilities = []Capability{SeeAllInOrg, ManageHierarchy, AuthorTestCases, ManageAssignments, Execute}

//go:embed model.conf
var modelText string

//go:embed policy.csv
var policyText string

type roleMask uint8

// Table answers capability questions for any combination of roles. Combinations are
// precomputed so lookups never touch the enforcer.
type Table struct {
	grants map[roleMask]map[Capability]bool
}

func NewTable() (*Table, error) {
	return newTableFrom(modelText, policyText)
}

func newTableFrom(modelConf, policy string) (*Table, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("permissions: parse model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, fmt.Errorf("permissions: init enforcer: %w", err)
	}
	enf.EnableAutoSave(false)

	t := &Table{grants: make(map[roleMask]map[Capability]bool)}
	limit := roleMask(1) << len(user.AllRoles)
	for mask := roleMask(1); mask < limit; mask++ {
		subject := fmt.Sprintf("roles:%d", mask)
		for i, r := range user.AllRoles {
			if mask&(1<<i) == 0 {
				continue
			}
			if _, err := enf.AddGroupingPolicy(subject, string(r)); err != nil {
				return nil, fmt.Errorf("permissions: group %s: %w", subject, err)
			}
		}
		caps := make(map[Capability]bool, len(AllCapabilities))
		for _, c := range AllCapabilities {
			ok, err := enf.Enforce(subject, string(c))
			if err != nil {
				return nil, fmt.Errorf("permissions: enforce %s/%s: %w", subject, c, err)
			}
			caps[c] = ok
		}
		t.grants[mask] = caps
	}
	return t, nil
}

func maskOf(roles []user.Role) roleMask {
	var mask roleMask
	for i, known := range user.AllRoles {
		for _, r := range roles {
			if r == known {
				mask |= 1 << i
			}
		}
	}
	return mask
}

func (t *Table) Has(roles []user.Role, c Capability) bool {
	caps, ok := t.grants[maskOf(roles)]
	if !ok {
		return false
	}
	return caps[c]
}

// Can is Has for the roles of u.
func (t *Table) Can(u user.User, c Capability) bool {
	return t.Has(u.Roles(), c)
}

// Capabilities lists the capabilities granted to u in AllCapabilities order.
func (t *Table) Capabilities(u user.User) []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if t.Can(u, c) {
			out = append(out, c)
		}
	}
	return out
}

var defaultTable = sync.OnceValues(NewTable)

// Use returns the process-wide table built from the embedded policy.
func Use() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(err)
	}
	return t
}
