package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/richinex/stepwise/action"
	"github.com/richinex/stepwise/remote"
)

type wikiWrite struct {
	File      string
	Content   string
	ChangedBy string
}

// fakeAPI records every call and serves canned data.
type fakeAPI struct {
	employees     map[string]remote.Employee
	projects      map[string]remote.ProjectDetail
	customers     map[string]remote.CompanyDetail
	projectPages  map[int]remote.ProjectsPage
	customerPages map[int]remote.CompaniesPage

	doRequests      []remote.Request
	doErr           error
	employeeUpdates []remote.EmployeeUpdate
	wikiWrites      []wikiWrite
	searchErrOnce   error
}

func (f *fakeAPI) Do(ctx context.Context, req remote.Request) (json.RawMessage, error) {
	f.doRequests = append(f.doRequests, req)
	if f.doErr != nil {
		return nil, f.doErr
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeAPI) GetEmployee(ctx context.Context, id string) (remote.Employee, error) {
	emp, ok := f.employees[id]
	if !ok {
		return remote.Employee{}, &remote.APIError{Code: "not_found", Message: "employee not found"}
	}
	return emp, nil
}

func (f *fakeAPI) GetProject(ctx context.Context, id string) (remote.ProjectDetail, error) {
	prj, ok := f.projects[id]
	if !ok {
		return remote.ProjectDetail{}, &remote.APIError{Code: "not_found", Message: "project not found"}
	}
	return prj, nil
}

func (f *fakeAPI) GetCustomer(ctx context.Context, id string) (remote.CompanyDetail, error) {
	c, ok := f.customers[id]
	if !ok {
		return remote.CompanyDetail{}, &remote.APIError{Code: "not_found", Message: "customer not found"}
	}
	return c, nil
}

func (f *fakeAPI) SearchProjects(ctx context.Context, q remote.ProjectSearch) (remote.ProjectsPage, error) {
	if f.searchErrOnce != nil {
		err := f.searchErrOnce
		f.searchErrOnce = nil
		return remote.ProjectsPage{}, err
	}
	page, ok := f.projectPages[q.Offset]
	if !ok {
		return remote.ProjectsPage{NextOffset: remote.EndOfResults}, nil
	}
	return page, nil
}

func (f *fakeAPI) SearchCustomers(ctx context.Context, q remote.CustomerSearch) (remote.CompaniesPage, error) {
	page, ok := f.customerPages[q.Offset]
	if !ok {
		return remote.CompaniesPage{NextOffset: remote.EndOfResults}, nil
	}
	return page, nil
}

func (f *fakeAPI) UpdateEmployee(ctx context.Context, u remote.EmployeeUpdate) (json.RawMessage, error) {
	f.employeeUpdates = append(f.employeeUpdates, u)
	if f.employees == nil {
		f.employees = make(map[string]remote.Employee)
	}
	// The service replaces the stored profile with the submitted state.
	emp := f.employees[u.Employee]
	emp.ID = u.Employee
	emp.Notes = u.Notes
	emp.Salary = u.Salary
	emp.Skills = u.Skills
	emp.Wills = u.Wills
	emp.Location = u.Location
	emp.Department = u.Department
	f.employees[u.Employee] = emp
	return json.RawMessage(`{}`), nil
}

func (f *fakeAPI) UpdateWiki(ctx context.Context, file, content, changedBy string) (json.RawMessage, error) {
	f.wikiWrites = append(f.wikiWrites, wikiWrite{File: file, Content: content, ChangedBy: changedBy})
	return json.RawMessage(`{}`), nil
}

func TestRespondStripsSelfLink(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{CurrentUser: "emp-1"})

	_, err := d.Dispatch(context.Background(), &action.Respond{
		Message: "done",
		Outcome: action.OutcomeCompleted,
		Links: []remote.Link{
			{Kind: "employee", ID: "emp-1"},
			{Kind: "project", ID: "prj-5"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.doRequests) != 1 {
		t.Fatalf("expected one wire call, got %d", len(api.doRequests))
	}
	sent, ok := api.doRequests[0].(*action.Respond)
	if !ok {
		t.Fatalf("expected *action.Respond, got %T", api.doRequests[0])
	}
	if len(sent.Links) != 1 || sent.Links[0].ID != "prj-5" {
		t.Errorf("expected only the project link to survive, got %+v", sent.Links)
	}
}

func TestUpdateEmployeeMergesCurrentProfile(t *testing.T) {
	api := &fakeAPI{
		employees: map[string]remote.Employee{
			"emp-2": {
				ID: "emp-2", Name: "Grace",
				Notes: "old notes", Salary: 80000,
				Skills: []string{"go"}, Wills: []string{"lead"},
				Location: "Berlin", Department: "Engineering",
			},
		},
	}
	d := NewDispatcher(api, remote.WhoAmI{CurrentUser: "emp-1"})

	_, err := d.Dispatch(context.Background(), &action.UpdateEmployeeInfo{
		Employee:  "emp-2",
		Location:  "Munich",
		ChangedBy: "emp-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.employeeUpdates) != 1 {
		t.Fatalf("expected one update, got %d", len(api.employeeUpdates))
	}
	got := api.employeeUpdates[0]
	if got.Location != "Munich" {
		t.Errorf("expected new location, got %q", got.Location)
	}
	if got.Notes != "old notes" || got.Salary != 80000 || got.Department != "Engineering" {
		t.Errorf("unset fields must be filled from the current profile, got %+v", got)
	}
	if len(got.Skills) != 1 || len(got.Wills) != 1 {
		t.Errorf("skills and wills must be preserved, got %+v", got)
	}
}

func TestUpdateEmployeePartialResubmitIsIdempotent(t *testing.T) {
	api := &fakeAPI{
		employees: map[string]remote.Employee{
			"emp-2": {
				ID: "emp-2", Name: "Grace",
				Notes: "old notes", Salary: 80000,
				Skills: []string{"go"}, Wills: []string{"lead"},
				Location: "Berlin", Department: "Engineering",
			},
		},
	}
	d := NewDispatcher(api, remote.WhoAmI{CurrentUser: "emp-1"})
	update := &action.UpdateEmployeeInfo{Employee: "emp-2", Location: "Munich", ChangedBy: "emp-1"}

	if _, err := d.Dispatch(context.Background(), update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := api.employees["emp-2"]

	if _, err := d.Dispatch(context.Background(), update); err != nil {
		t.Fatalf("unexpected error on resubmit: %v", err)
	}
	second := api.employees["emp-2"]

	if !reflect.DeepEqual(first, second) {
		t.Errorf("resubmitting the same partial update changed the record:\nfirst  %+v\nsecond %+v", first, second)
	}
	if second.Location != "Munich" || second.Notes != "old notes" || second.Salary != 80000 {
		t.Errorf("stored record lost fields the update never mentioned: %+v", second)
	}
	if len(api.employeeUpdates) != 2 || !reflect.DeepEqual(api.employeeUpdates[0], api.employeeUpdates[1]) {
		t.Errorf("both writes must be identical, got %+v", api.employeeUpdates)
	}
}

func TestDeleteWikiPageRewritesToEmptyUpdate(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{})

	_, err := d.Dispatch(context.Background(), &action.DeleteWikiPage{
		File: "wiki/obsolete.md", ChangedBy: "emp-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.wikiWrites) != 1 {
		t.Fatalf("expected one wiki write, got %d", len(api.wikiWrites))
	}
	w := api.wikiWrites[0]
	if w.File != "wiki/obsolete.md" || w.Content != "" || w.ChangedBy != "emp-1" {
		t.Errorf("expected empty-content update with attribution, got %+v", w)
	}
	if len(api.doRequests) != 0 {
		t.Errorf("delete must not hit any other endpoint, got %v", api.doRequests)
	}
}

func TestWrapperActionsUnwrapBeforeTheWire(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{})

	if _, err := d.Dispatch(context.Background(), &action.TimesheetReportByProject{Project: "prj-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), &action.CreateTimeEntryForUser{
		Employee: "emp-1", Project: "prj-1", Date: "2026-08-20", Hours: 6,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.doRequests) != 2 {
		t.Fatalf("expected two wire calls, got %d", len(api.doRequests))
	}
	if _, ok := api.doRequests[0].(*action.TimeSummaryByProject); !ok {
		t.Errorf("expected unwrapped summary request, got %T", api.doRequests[0])
	}
	logged, ok := api.doRequests[1].(*action.LogTimeEntry)
	if !ok {
		t.Fatalf("expected unwrapped log request, got %T", api.doRequests[1])
	}
	if logged.Hours != 6 || logged.Employee != "emp-1" {
		t.Errorf("wrapper fields must carry over, got %+v", logged)
	}
}

func TestAllProjectsForUserPartitionsByRole(t *testing.T) {
	api := &fakeAPI{
		projectPages: map[int]remote.ProjectsPage{
			0: {Projects: []remote.ProjectSummary{{ID: "prj-1"}, {ID: "prj-2"}}, NextOffset: 2},
			2: {Projects: []remote.ProjectSummary{{ID: "prj-3"}}, NextOffset: remote.EndOfResults},
		},
		projects: map[string]remote.ProjectDetail{
			"prj-1": {ID: "prj-1", Team: []remote.TeamSlot{{Employee: "emp-1", Role: remote.RoleLead}}},
			"prj-2": {ID: "prj-2", Team: []remote.TeamSlot{{Employee: "emp-1", Role: "Developer"}}},
			"prj-3": {ID: "prj-3", Team: []remote.TeamSlot{{Employee: "emp-1", Role: remote.RoleLead}}},
		},
	}
	d := NewDispatcher(api, remote.WhoAmI{CurrentUser: "emp-1"})

	payload, err := d.Dispatch(context.Background(), &action.AllProjectsForUser{User: "emp-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		LeadIn   []remote.ProjectDetail `json:"lead_in"`
		MemberOf []remote.ProjectDetail `json:"member_of"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if len(result.LeadIn) != 2 {
		t.Errorf("expected 2 led projects, got %+v", result.LeadIn)
	}
	if len(result.MemberOf) != 1 || result.MemberOf[0].ID != "prj-2" {
		t.Errorf("expected prj-2 as member project, got %+v", result.MemberOf)
	}
}

func TestAllProjectsForUserRetriesSmallerPage(t *testing.T) {
	api := &fakeAPI{
		searchErrOnce: &remote.APIError{Code: "page_limit_exceeded", Message: "page limit exceeded"},
		projectPages: map[int]remote.ProjectsPage{
			0: {Projects: []remote.ProjectSummary{{ID: "prj-1"}}, NextOffset: remote.EndOfResults},
		},
		projects: map[string]remote.ProjectDetail{
			"prj-1": {ID: "prj-1", Team: []remote.TeamSlot{{Employee: "emp-1", Role: remote.RoleLead}}},
		},
	}
	d := NewDispatcher(api, remote.WhoAmI{})

	payload, err := d.Dispatch(context.Background(), &action.AllProjectsForUser{User: "emp-1"})
	if err != nil {
		t.Fatalf("expected the rejection to be retried, got %v", err)
	}
	var result map[string][]remote.ProjectDetail
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if len(result["lead_in"]) != 1 {
		t.Errorf("expected the project after retry, got %+v", result)
	}
}

func TestAllCustomersForUserCollectsDetails(t *testing.T) {
	api := &fakeAPI{
		customerPages: map[int]remote.CompaniesPage{
			0: {Companies: []remote.CompanySummary{{ID: "cust-1"}, {ID: "cust-2"}}, NextOffset: remote.EndOfResults},
		},
		customers: map[string]remote.CompanyDetail{
			"cust-1": {ID: "cust-1", Name: "Acme", AccountManagers: []string{"emp-1"}},
			"cust-2": {ID: "cust-2", Name: "Globex", AccountManagers: []string{"emp-1"}},
		},
	}
	d := NewDispatcher(api, remote.WhoAmI{})

	payload, err := d.Dispatch(context.Background(), &action.AllCustomersForUser{User: "emp-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Customers []remote.CompanyDetail `json:"customers"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if len(result.Customers) != 2 {
		t.Errorf("expected 2 customers, got %+v", result.Customers)
	}
}

func TestAllCustomersForUserEmptyResultIsNotNull(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{})

	payload, err := d.Dispatch(context.Background(), &action.AllCustomersForUser{User: "emp-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"customers":[]}` {
		t.Errorf("expected empty array encoding, got %s", payload)
	}
}

func TestPassThroughActionsHitTheirToolPath(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{})

	reqs := []action.Request{
		&action.GetProject{ID: "prj-1"},
		&action.SearchEmployees{Limit: 32},
		&action.UpdateProjectStatus{ID: "prj-1", Status: "archived"},
	}
	for _, req := range reqs {
		if _, err := d.Dispatch(context.Background(), req); err != nil {
			t.Fatalf("unexpected error for %s: %v", req.Tool(), err)
		}
	}

	if len(api.doRequests) != len(reqs) {
		t.Fatalf("expected %d wire calls, got %d", len(reqs), len(api.doRequests))
	}
	for i, req := range reqs {
		if got := api.doRequests[i].Tool(); got != req.Tool() {
			t.Errorf("call %d: expected tool %s, got %s", i, req.Tool(), got)
		}
	}
}

func ExampleDispatcher_Dispatch() {
	api := &fakeAPI{}
	d := NewDispatcher(api, remote.WhoAmI{CurrentUser: "emp-1"})

	payload, _ := d.Dispatch(context.Background(), &action.AllCustomersForUser{User: "emp-1"})
	fmt.Println(string(payload))
	// Output: {"customers":[]}
}
