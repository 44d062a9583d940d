package execution

import (
	"cmp"
	"slices"
	"strings"
)

// WorkItem is an execution joined with the names the workbench orders and shows it by.
type WorkItem struct {
	Execution
	ProjectName   string `json:"project_name"`
	ModuleName    string `json:"module_name"`
	SubmoduleName string `json:"submodule_name"`
	TestCaseTitle string `json:"test_case_title"`
	CreationOrder int64  `json:"creation_order"`
}

// CompareWorkItems orders by module name, submodule name, case creation order and
// case id. Module and submodule ids break name ties so equal names never interleave.
func CompareWorkItems(a, b WorkItem) int {
	return cmp.Or(
		strings.Compare(a.ModuleName, b.ModuleName),
		strings.Compare(a.ModuleID.String(), b.ModuleID.String()),
		strings.Compare(a.SubmoduleName, b.SubmoduleName),
		strings.Compare(a.SubmoduleID.String(), b.SubmoduleID.String()),
		cmp.Compare(a.CreationOrder, b.CreationOrder),
		strings.Compare(a.TestCaseID.String(), b.TestCaseID.String()),
	)
}

func SortWorkItems(items []WorkItem) {
	slices.SortFunc(items, CompareWorkItems)
}

// Summary counts overall results.
type Summary struct {
	Total           int `json:"total"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Blocked         int `json:"blocked"`
	PartiallyPassed int `json:"partially_passed"`
	Pending         int `json:"pending"`
}

func Summarize(items []WorkItem) Summary {
	s := Summary{Total: len(items)}
	for _, it := range items {
		switch it.Overall {
		case ResultPassed:
			s.Passed++
		case ResultFailed:
			s.Failed++
		case ResultBlocked:
			s.Blocked++
		case ResultPartiallyPassed:
			s.PartiallyPassed++
		default:
			s.Pending++
		}
	}
	return s
}
