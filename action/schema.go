package action

import (
	"encoding/json"
	"sort"
)

// Schema builders. Every variant schema is strict: the tool tag is a
// constant, all fields are required and unknown fields are rejected, so a
// model cannot invent parameters the dispatcher would silently drop.
// Optional fields are declared nullable instead of omitted.

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func nullable(s map[string]any) map[string]any {
	out := make(map[string]any, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out["type"] = []any{s["type"], "null"}
	return out
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func number(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func arrayOf(items map[string]any, desc string) map[string]any {
	return map[string]any{"type": "array", "items": items, "description": desc}
}

func enumOf(desc string, values ...string) map[string]any {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return map[string]any{"type": "string", "enum": vals, "description": desc}
}

func objectOf(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// variantSchema builds the strict schema for one action: the tool constant
// plus its fields, everything required.
func variantSchema(tool, desc string, props map[string]any) map[string]any {
	all := make(map[string]any, len(props)+1)
	all["tool"] = map[string]any{"const": tool, "description": desc}
	for name, prop := range props {
		all[name] = prop
	}
	return objectOf(all)
}

var (
	pagingProps = map[string]any{
		"offset": integer("zero-based offset of the first record, or the next_offset of the previous page"),
		"limit":  integer("page size; start at 32 and retry smaller if the service rejects it"),
	}

	linkSchema = objectOf(map[string]any{
		"kind": enumOf("entity kind", "project", "employee", "customer", "time_entry", "wiki"),
		"id":   str("entity identifier"),
	})

	teamSlotSchema = objectOf(map[string]any{
		"employee": str("employee id"),
		"role":     str("role on the project; exactly one member holds Lead"),
	})
)

func withPaging(props map[string]any) map[string]any {
	all := make(map[string]any, len(props)+2)
	for k, v := range props {
		all[k] = v
	}
	for k, v := range pagingProps {
		all[k] = v
	}
	return all
}

func init() {
	register(ToolRespond, "Respond",
		func() Request { return &Respond{} },
		variantSchema(ToolRespond, "finish the task and deliver the final answer", map[string]any{
			"message": str("final answer for the user, self-contained and specific"),
			"outcome": enumOf("how the task ended",
				string(OutcomeCompleted), string(OutcomeUnsupported),
				string(OutcomeDeniedSecurity), string(OutcomeNeedsClarification)),
			"links": arrayOf(linkSchema, "every entity the answer mentions"),
		}), true)

	register(ToolListProjects, "ListProjects",
		func() Request { return &ListProjects{} },
		variantSchema(ToolListProjects, "page through all projects", withPaging(nil)), true)

	register(ToolSearchProjects, "SearchProjects",
		func() Request { return &SearchProjects{} },
		variantSchema(ToolSearchProjects, "page through projects matching a filter", withPaging(map[string]any{
			"query":            nullable(str("free-text filter, or null")),
			"team_member":      nullable(str("restrict to projects this employee is on, or null")),
			"include_archived": boolean("include archived projects"),
		})), true)

	register(ToolAllProjectsForUser, "AllProjectsForUser",
		func() Request { return &AllProjectsForUser{} },
		variantSchema(ToolAllProjectsForUser, "collect the complete set of projects a user belongs to, split into led and member roles", map[string]any{
			"user": str("employee id"),
		}), true)

	register(ToolGetProject, "GetProject",
		func() Request { return &GetProject{} },
		variantSchema(ToolGetProject, "load one full project record", map[string]any{
			"id": str("project id"),
		}), true)

	register(ToolUpdateProjectTeam, "UpdateProjectTeam",
		func() Request { return &UpdateProjectTeam{} },
		variantSchema(ToolUpdateProjectTeam, "replace a project's team assignment", map[string]any{
			"id":         str("project id"),
			"team":       arrayOf(teamSlotSchema, "the complete new team"),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)

	register(ToolUpdateProjectStatus, "UpdateProjectStatus",
		func() Request { return &UpdateProjectStatus{} },
		variantSchema(ToolUpdateProjectStatus, "move a project to a new status", map[string]any{
			"id":         str("project id"),
			"status":     str("target status"),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)

	register(ToolListEmployees, "ListEmployees",
		func() Request { return &ListEmployees{} },
		variantSchema(ToolListEmployees, "page through the employee directory", withPaging(nil)), true)

	register(ToolSearchEmployees, "SearchEmployees",
		func() Request { return &SearchEmployees{} },
		variantSchema(ToolSearchEmployees, "page through employees matching a filter", withPaging(map[string]any{
			"query":      nullable(str("free-text filter, or null")),
			"location":   nullable(str("restrict to a location, or null")),
			"department": nullable(str("restrict to a department, or null")),
		})), true)

	register(ToolGetEmployee, "GetEmployee",
		func() Request { return &GetEmployee{} },
		variantSchema(ToolGetEmployee, "load one full employee profile", map[string]any{
			"employee": str("employee id"),
		}), true)

	register(ToolUpdateEmployeeInfo, "UpdateEmployeeInfo",
		func() Request { return &UpdateEmployeeInfo{} },
		variantSchema(ToolUpdateEmployeeInfo, "update an employee profile; null fields keep their current value", map[string]any{
			"employee":   str("employee id"),
			"notes":      nullable(str("new notes, or null to keep")),
			"salary":     nullable(integer("new salary, or null to keep")),
			"skills":     nullable(arrayOf(str("skill"), "new skill list, or null to keep")),
			"wills":      nullable(arrayOf(str("will"), "new will list, or null to keep")),
			"location":   nullable(str("new location, or null to keep")),
			"department": nullable(str("new department, or null to keep")),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)

	register(ToolListCustomers, "ListCustomers",
		func() Request { return &ListCustomers{} },
		variantSchema(ToolListCustomers, "page through customer companies", withPaging(nil)), true)

	register(ToolSearchCustomers, "SearchCustomers",
		func() Request { return &SearchCustomers{} },
		variantSchema(ToolSearchCustomers, "page through customers matching a filter", withPaging(map[string]any{
			"query":            nullable(str("free-text filter, or null")),
			"account_managers": nullable(arrayOf(str("employee id"), "restrict to customers managed by any of these employees, or null")),
		})), true)

	register(ToolAllCustomersForUser, "AllCustomersForUser",
		func() Request { return &AllCustomersForUser{} },
		variantSchema(ToolAllCustomersForUser, "collect the complete set of customers a user account-manages", map[string]any{
			"user": str("employee id"),
		}), true)

	register(ToolGetCustomer, "GetCustomer",
		func() Request { return &GetCustomer{} },
		variantSchema(ToolGetCustomer, "load one full customer record", map[string]any{
			"id": str("customer id"),
		}), true)

	register(ToolSearchTimeEntries, "SearchTimeEntries",
		func() Request { return &SearchTimeEntries{} },
		variantSchema(ToolSearchTimeEntries, "page through time entries matching a filter", withPaging(map[string]any{
			"employee": nullable(str("restrict to one employee, or null")),
			"project":  nullable(str("restrict to one project, or null")),
			"from":     nullable(str("inclusive start date YYYY-MM-DD, or null")),
			"to":       nullable(str("inclusive end date YYYY-MM-DD, or null")),
		})), true)

	register(ToolGetTimeEntry, "GetTimeEntry",
		func() Request { return &GetTimeEntry{} },
		variantSchema(ToolGetTimeEntry, "load one time entry", map[string]any{
			"id": str("time entry id"),
		}), true)

	// The raw log operation stays decodable for replayed transcripts but the
	// model is offered the unambiguous create wrapper instead.
	register(ToolLogTimeEntry, "LogTimeEntry",
		func() Request { return &LogTimeEntry{} },
		variantSchema(ToolLogTimeEntry, "record a unit of work", timeEntryFields()), false)

	register(ToolCreateTimeEntryForUser, "CreateTimeEntryForUser",
		func() Request { return &CreateTimeEntryForUser{} },
		variantSchema(ToolCreateTimeEntryForUser, "create a new time entry for an employee", timeEntryFields()), true)

	register(ToolUpdateTimeEntry, "UpdateTimeEntry",
		func() Request { return &UpdateTimeEntry{} },
		variantSchema(ToolUpdateTimeEntry, "edit or archive an existing time entry; null fields keep their current value", map[string]any{
			"id":         str("time entry id"),
			"hours":      nullable(number("new hours, or null to keep")),
			"note":       nullable(str("new note, or null to keep")),
			"archived":   boolean("archive the entry"),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)

	register(ToolTimeSummaryByProject, "TimeSummaryByProject",
		func() Request { return &TimeSummaryByProject{} },
		variantSchema(ToolTimeSummaryByProject, "aggregate logged time for one project", map[string]any{
			"project": str("project id"),
			"from":    nullable(str("inclusive start date YYYY-MM-DD, or null")),
			"to":      nullable(str("inclusive end date YYYY-MM-DD, or null")),
		}), false)

	register(ToolTimesheetReportByProject, "TimesheetReportByProject",
		func() Request { return &TimesheetReportByProject{} },
		variantSchema(ToolTimesheetReportByProject, "timesheet report: total logged time for one project", map[string]any{
			"project": str("project id"),
			"from":    nullable(str("inclusive start date YYYY-MM-DD, or null")),
			"to":      nullable(str("inclusive end date YYYY-MM-DD, or null")),
		}), true)

	register(ToolTimeSummaryByEmployee, "TimeSummaryByEmployee",
		func() Request { return &TimeSummaryByEmployee{} },
		variantSchema(ToolTimeSummaryByEmployee, "aggregate logged time for one employee", map[string]any{
			"employee": str("employee id"),
			"from":     nullable(str("inclusive start date YYYY-MM-DD, or null")),
			"to":       nullable(str("inclusive end date YYYY-MM-DD, or null")),
		}), true)

	register(ToolListWikiPages, "ListWikiPages",
		func() Request { return &ListWikiPages{} },
		variantSchema(ToolListWikiPages, "list the paths of all documentation pages", nil), true)

	register(ToolGetWikiPage, "GetWikiPage",
		func() Request { return &GetWikiPage{} },
		variantSchema(ToolGetWikiPage, "load one documentation page", map[string]any{
			"file": str("page path"),
		}), true)

	register(ToolUpdateWikiPage, "UpdateWikiPage",
		func() Request { return &UpdateWikiPage{} },
		variantSchema(ToolUpdateWikiPage, "replace a documentation page's content", map[string]any{
			"file":       str("page path"),
			"content":    str("the complete new page content"),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)

	register(ToolDeleteWikiPage, "DeleteWikiPage",
		func() Request { return &DeleteWikiPage{} },
		variantSchema(ToolDeleteWikiPage, "remove a documentation page", map[string]any{
			"file":       str("page path"),
			"changed_by": nullable(str("id of the employee making the change, or null")),
		}), true)
}

func timeEntryFields() map[string]any {
	return map[string]any{
		"employee": str("employee id"),
		"project":  str("project id"),
		"date":     str("work date YYYY-MM-DD"),
		"hours":    number("hours worked"),
		"note":     nullable(str("short description, or null")),
	}
}

// NextStepSchema is the JSON schema of the decision envelope, with the
// function field an anyOf over every exposed variant.
func NextStepSchema() json.RawMessage {
	variants := make([]any, 0, len(catalogOrder))
	for _, tool := range catalogOrder {
		info := catalog[tool]
		if info.exposed {
			variants = append(variants, info.schema)
		}
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"current_state": str("one sentence: what is known so far and what the last observation showed"),
			"plan_remaining_steps_brief": map[string]any{
				"type":        "array",
				"items":       str("one planned step"),
				"minItems":    1,
				"maxItems":    maxPlannedSteps,
				"description": "remaining plan; only the first entry is executed",
			},
			"task_completed": boolean("true when the chosen function is the final Respond"),
			"function": map[string]any{
				"anyOf":       variants,
				"description": "the single action to execute now",
			},
		},
		"required":             []string{"current_state", "plan_remaining_steps_brief", "task_completed", "function"},
		"additionalProperties": false,
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		// The schema is assembled from literals; a marshal failure is a
		// programming error.
		panic(err)
	}
	return raw
}
