package action

import (
	"github.com/richinex/stepwise/remote"
)

// Tool paths. Paths under local* never reach the wire: the dispatcher
// rewrites or assembles them from the underlying operations.
const (
	ToolRespond = "/respond"

	ToolListProjects        = "/projects/list"
	ToolSearchProjects      = "/projects/search"
	ToolGetProject          = "/projects/get"
	ToolUpdateProjectTeam   = "/projects/update-team"
	ToolUpdateProjectStatus = "/projects/update-status"

	ToolListEmployees      = "/employees/list"
	ToolSearchEmployees    = "/employees/search"
	ToolGetEmployee        = "/employees/get"
	ToolUpdateEmployeeInfo = "/employees/update"

	ToolListCustomers   = "/customers/list"
	ToolSearchCustomers = "/customers/search"
	ToolGetCustomer     = "/customers/get"

	ToolSearchTimeEntries     = "/time/search"
	ToolGetTimeEntry          = "/time/get"
	ToolLogTimeEntry          = "/time/log"
	ToolUpdateTimeEntry       = "/time/update"
	ToolTimeSummaryByProject  = "/time/summary-by-project"
	ToolTimeSummaryByEmployee = "/time/summary-by-employee"

	ToolListWikiPages  = "/wiki/list"
	ToolGetWikiPage    = "/wiki/load"
	ToolUpdateWikiPage = "/wiki/update"

	// Local composite and rewrite aliases.
	ToolAllProjectsForUser       = "/all-projects-for-user"
	ToolAllCustomersForUser      = "/all-customers-for-user"
	ToolDeleteWikiPage           = "/wiki/delete"
	ToolTimesheetReportByProject = "/timesheet/report-by-project"
	ToolCreateTimeEntryForUser   = "/time/create-for-user"
)

// Respond is the terminal action: it ends the run and carries the final
// message, outcome code and entity links.
type Respond struct {
	Message string        `json:"message"`
	Outcome Outcome       `json:"outcome"`
	Links   []remote.Link `json:"links"`
}

func (*Respond) Tool() string { return ToolRespond }
func (*Respond) isAction()    {}

// ListProjects pages through projects without a filter.
type ListProjects struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (*ListProjects) Tool() string { return ToolListProjects }
func (*ListProjects) isAction()    {}

// SearchProjects pages through projects matching a filter.
type SearchProjects struct {
	Query           string `json:"query,omitempty"`
	TeamMember      string `json:"team_member,omitempty"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Offset          int    `json:"offset"`
	Limit           int    `json:"limit"`
}

func (*SearchProjects) Tool() string { return ToolSearchProjects }
func (*SearchProjects) isAction()    {}

// AllProjectsForUser assembles every project a user belongs to, split by
// whether they lead it. Composite: executed via paged aggregation.
type AllProjectsForUser struct {
	User string `json:"user"`
}

func (*AllProjectsForUser) Tool() string { return ToolAllProjectsForUser }
func (*AllProjectsForUser) isAction()    {}

// GetProject loads one full project record.
type GetProject struct {
	ID string `json:"id"`
}

func (*GetProject) Tool() string { return ToolGetProject }
func (*GetProject) isAction()    {}

// UpdateProjectTeam replaces a project's team assignment.
type UpdateProjectTeam struct {
	ID        string            `json:"id"`
	Team      []remote.TeamSlot `json:"team"`
	ChangedBy string            `json:"changed_by,omitempty"`
}

func (*UpdateProjectTeam) Tool() string { return ToolUpdateProjectTeam }
func (*UpdateProjectTeam) isAction()    {}

// UpdateProjectStatus moves a project to a new status.
type UpdateProjectStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by,omitempty"`
}

func (*UpdateProjectStatus) Tool() string { return ToolUpdateProjectStatus }
func (*UpdateProjectStatus) isAction()    {}

// ListEmployees pages through the employee directory.
type ListEmployees struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (*ListEmployees) Tool() string { return ToolListEmployees }
func (*ListEmployees) isAction()    {}

// SearchEmployees pages through employees matching a filter.
type SearchEmployees struct {
	Query      string `json:"query,omitempty"`
	Location   string `json:"location,omitempty"`
	Department string `json:"department,omitempty"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
}

func (*SearchEmployees) Tool() string { return ToolSearchEmployees }
func (*SearchEmployees) isAction()    {}

// GetEmployee loads one full employee profile.
type GetEmployee struct {
	Employee string `json:"employee"`
}

func (*GetEmployee) Tool() string { return ToolGetEmployee }
func (*GetEmployee) isAction()    {}

// UpdateEmployeeInfo updates an employee profile. Unset fields are filled
// from the current record before the write, so a partial update never
// erases what it does not mention.
type UpdateEmployeeInfo struct {
	Employee   string   `json:"employee"`
	Notes      string   `json:"notes,omitempty"`
	Salary     int      `json:"salary,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Wills      []string `json:"wills,omitempty"`
	Location   string   `json:"location,omitempty"`
	Department string   `json:"department,omitempty"`
	ChangedBy  string   `json:"changed_by,omitempty"`
}

func (*UpdateEmployeeInfo) Tool() string { return ToolUpdateEmployeeInfo }
func (*UpdateEmployeeInfo) isAction()    {}

// ListCustomers pages through customer companies.
type ListCustomers struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (*ListCustomers) Tool() string { return ToolListCustomers }
func (*ListCustomers) isAction()    {}

// AllCustomersForUser assembles every customer a user account-manages.
// Composite: executed via paged aggregation.
type AllCustomersForUser struct {
	User string `json:"user"`
}

func (*AllCustomersForUser) Tool() string { return ToolAllCustomersForUser }
func (*AllCustomersForUser) isAction()    {}

// GetCustomer loads one full customer record.
type GetCustomer struct {
	ID string `json:"id"`
}

func (*GetCustomer) Tool() string { return ToolGetCustomer }
func (*GetCustomer) isAction()    {}

// SearchCustomers pages through customers matching a filter.
type SearchCustomers struct {
	Query           string   `json:"query,omitempty"`
	AccountManagers []string `json:"account_managers,omitempty"`
	Offset          int      `json:"offset"`
	Limit           int      `json:"limit"`
}

func (*SearchCustomers) Tool() string { return ToolSearchCustomers }
func (*SearchCustomers) isAction()    {}

// SearchTimeEntries pages through time entries matching a filter.
type SearchTimeEntries struct {
	Employee string `json:"employee,omitempty"`
	Project  string `json:"project,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

func (*SearchTimeEntries) Tool() string { return ToolSearchTimeEntries }
func (*SearchTimeEntries) isAction()    {}

// GetTimeEntry loads one time entry.
type GetTimeEntry struct {
	ID string `json:"id"`
}

func (*GetTimeEntry) Tool() string { return ToolGetTimeEntry }
func (*GetTimeEntry) isAction()    {}

// LogTimeEntry records a unit of work. Not exposed to the model directly;
// CreateTimeEntryForUser is its model-facing name.
type LogTimeEntry struct {
	Employee string  `json:"employee"`
	Project  string  `json:"project"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Note     string  `json:"note,omitempty"`
}

func (*LogTimeEntry) Tool() string { return ToolLogTimeEntry }
func (*LogTimeEntry) isAction()    {}

// CreateTimeEntryForUser is a renamed wrapper of LogTimeEntry; the distinct
// name keeps the model from confusing it with UpdateTimeEntry.
type CreateTimeEntryForUser struct {
	Employee string  `json:"employee"`
	Project  string  `json:"project"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Note     string  `json:"note,omitempty"`
}

func (*CreateTimeEntryForUser) Tool() string { return ToolCreateTimeEntryForUser }
func (*CreateTimeEntryForUser) isAction()    {}

// UpdateTimeEntry edits or archives an existing time entry.
type UpdateTimeEntry struct {
	ID        string  `json:"id"`
	Hours     float64 `json:"hours,omitempty"`
	Note      string  `json:"note,omitempty"`
	Archived  bool    `json:"archived,omitempty"`
	ChangedBy string  `json:"changed_by,omitempty"`
}

func (*UpdateTimeEntry) Tool() string { return ToolUpdateTimeEntry }
func (*UpdateTimeEntry) isAction()    {}

// TimeSummaryByProject aggregates logged time for one project.
// Not exposed to the model directly; TimesheetReportByProject is its
// model-facing name.
type TimeSummaryByProject struct {
	Project string `json:"project"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

func (*TimeSummaryByProject) Tool() string { return ToolTimeSummaryByProject }
func (*TimeSummaryByProject) isAction()    {}

// TimesheetReportByProject is a renamed wrapper of TimeSummaryByProject.
type TimesheetReportByProject struct {
	Project string `json:"project"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

func (*TimesheetReportByProject) Tool() string { return ToolTimesheetReportByProject }
func (*TimesheetReportByProject) isAction()    {}

// TimeSummaryByEmployee aggregates logged time for one employee.
type TimeSummaryByEmployee struct {
	Employee string `json:"employee"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

func (*TimeSummaryByEmployee) Tool() string { return ToolTimeSummaryByEmployee }
func (*TimeSummaryByEmployee) isAction()    {}

// ListWikiPages returns the paths of all documentation pages.
type ListWikiPages struct{}

func (*ListWikiPages) Tool() string { return ToolListWikiPages }
func (*ListWikiPages) isAction()    {}

// GetWikiPage loads one documentation page.
type GetWikiPage struct {
	File string `json:"file"`
}

func (*GetWikiPage) Tool() string { return ToolGetWikiPage }
func (*GetWikiPage) isAction()    {}

// UpdateWikiPage replaces a documentation page's content.
type UpdateWikiPage struct {
	File      string `json:"file"`
	Content   string `json:"content"`
	ChangedBy string `json:"changed_by,omitempty"`
}

func (*UpdateWikiPage) Tool() string { return ToolUpdateWikiPage }
func (*UpdateWikiPage) isAction()    {}

// DeleteWikiPage removes a documentation page. Executed as an UpdateWikiPage
// with empty content and the same attribution; deletion stays reversible.
type DeleteWikiPage struct {
	File      string `json:"file"`
	ChangedBy string `json:"changed_by,omitempty"`
}

func (*DeleteWikiPage) Tool() string { return ToolDeleteWikiPage }
func (*DeleteWikiPage) isAction()    {}

// variantInfo is one catalog entry.
type variantInfo struct {
	name    string // catalog name recorded in the conversation log
	make    func() Request
	schema  map[string]any
	exposed bool // included in the model-facing envelope schema
}

// catalog maps tool paths to their variants. catalogOrder keeps schema
// generation deterministic.
var (
	catalog      = map[string]variantInfo{}
	catalogOrder []string
)

func register(tool, name string, build func() Request, schema map[string]any, exposed bool) {
	catalog[tool] = variantInfo{name: name, make: build, schema: schema, exposed: exposed}
	catalogOrder = append(catalogOrder, tool)
}

// ExposedTools returns the tool paths the model may choose from, in
// registration order.
func ExposedTools() []string {
	var tools []string
	for _, tool := range catalogOrder {
		if catalog[tool].exposed {
			tools = append(tools, tool)
		}
	}
	return tools
}
