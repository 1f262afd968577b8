package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the back-office service over HTTP.
// One client is scoped to a single task's credentials.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a client for the given service endpoint and task token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Do posts a structured request to its tool path and returns the raw
// success payload. Domain failures are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request for %s: %w", req.Tool(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Tool(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.Tool(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.Tool(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", req.Tool(), err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("%s returned %s: %s", req.Tool(), resp.Status, payload)
	}

	return json.RawMessage(payload), nil
}

// call posts a request and decodes the success payload into T.
func call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var result T
	raw, err := c.Do(ctx, req)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode response from %s: %w", req.Tool(), err)
	}
	return result, nil
}

// Wire shapes for the client's own typed calls. The model-facing action
// catalog defines its own records for the same paths.

type whoAmIReq struct{}

func (whoAmIReq) Tool() string { return "/who-am-i" }

type getEmployeeReq struct {
	Employee string `json:"employee"`
}

func (getEmployeeReq) Tool() string { return "/employees/get" }

type getProjectReq struct {
	ID string `json:"id"`
}

func (getProjectReq) Tool() string { return "/projects/get" }

type getCustomerReq struct {
	ID string `json:"id"`
}

func (getCustomerReq) Tool() string { return "/customers/get" }

type teamFilter struct {
	EmployeeID string `json:"employee_id"`
}

type searchProjectsReq struct {
	Offset          int         `json:"offset"`
	Limit           int         `json:"limit"`
	IncludeArchived bool        `json:"include_archived,omitempty"`
	Team            *teamFilter `json:"team,omitempty"`
}

func (searchProjectsReq) Tool() string { return "/projects/search" }

type searchCustomersReq struct {
	Offset          int      `json:"offset"`
	Limit           int      `json:"limit"`
	AccountManagers []string `json:"account_managers,omitempty"`
}

func (searchCustomersReq) Tool() string { return "/customers/search" }

type updateEmployeeReq struct {
	Employee   string   `json:"employee"`
	Notes      string   `json:"notes"`
	Salary     int      `json:"salary"`
	Skills     []string `json:"skills"`
	Wills      []string `json:"wills"`
	Location   string   `json:"location"`
	Department string   `json:"department"`
	ChangedBy  string   `json:"changed_by,omitempty"`
}

func (updateEmployeeReq) Tool() string { return "/employees/update" }

type updateWikiReq struct {
	File      string `json:"file"`
	Content   string `json:"content"`
	ChangedBy string `json:"changed_by,omitempty"`
}

func (updateWikiReq) Tool() string { return "/wiki/update" }

type listWikiReq struct{}

func (listWikiReq) Tool() string { return "/wiki/list" }

type loadWikiReq struct {
	File string `json:"file"`
}

func (loadWikiReq) Tool() string { return "/wiki/load" }

type employeeResult struct {
	Employee Employee `json:"employee"`
}

type projectResult struct {
	Project ProjectDetail `json:"project"`
}

type companyResult struct {
	Company CompanyDetail `json:"company"`
}

type wikiIndex struct {
	Paths []string `json:"paths"`
}

type wikiPage struct {
	Content string `json:"content"`
}

// WhoAmI resolves the actor the current task runs on behalf of.
func (c *Client) WhoAmI(ctx context.Context) (WhoAmI, error) {
	return call[WhoAmI](ctx, c, whoAmIReq{})
}

// GetEmployee loads a full employee profile.
func (c *Client) GetEmployee(ctx context.Context, id string) (Employee, error) {
	result, err := call[employeeResult](ctx, c, getEmployeeReq{Employee: id})
	return result.Employee, err
}

// GetProject loads a full project record.
func (c *Client) GetProject(ctx context.Context, id string) (ProjectDetail, error) {
	result, err := call[projectResult](ctx, c, getProjectReq{ID: id})
	return result.Project, err
}

// GetCustomer loads a full customer record.
func (c *Client) GetCustomer(ctx context.Context, id string) (CompanyDetail, error) {
	result, err := call[companyResult](ctx, c, getCustomerReq{ID: id})
	return result.Company, err
}

// SearchProjects returns one page of projects matching the filter.
func (c *Client) SearchProjects(ctx context.Context, q ProjectSearch) (ProjectsPage, error) {
	req := searchProjectsReq{
		Offset:          q.Offset,
		Limit:           q.Limit,
		IncludeArchived: q.IncludeArchived,
	}
	if q.TeamMember != "" {
		req.Team = &teamFilter{EmployeeID: q.TeamMember}
	}
	return call[ProjectsPage](ctx, c, req)
}

// SearchCustomers returns one page of customers matching the filter.
func (c *Client) SearchCustomers(ctx context.Context, q CustomerSearch) (CompaniesPage, error) {
	req := searchCustomersReq{Offset: q.Offset, Limit: q.Limit}
	if q.AccountManager != "" {
		req.AccountManagers = []string{q.AccountManager}
	}
	return call[CompaniesPage](ctx, c, req)
}

// EmployeeUpdate is the complete profile state an update writes. The service
// replaces the whole record, so callers merge unset fields from the current
// profile first.
type EmployeeUpdate struct {
	Employee   string
	Notes      string
	Salary     int
	Skills     []string
	Wills      []string
	Location   string
	Department string
	ChangedBy  string
}

// UpdateEmployee writes a complete employee profile.
func (c *Client) UpdateEmployee(ctx context.Context, u EmployeeUpdate) (json.RawMessage, error) {
	return c.Do(ctx, updateEmployeeReq{
		Employee:   u.Employee,
		Notes:      u.Notes,
		Salary:     u.Salary,
		Skills:     u.Skills,
		Wills:      u.Wills,
		Location:   u.Location,
		Department: u.Department,
		ChangedBy:  u.ChangedBy,
	})
}

// UpdateWiki replaces a documentation page's content. Writing empty content
// is how a page is deleted; the page stays listed and recoverable.
func (c *Client) UpdateWiki(ctx context.Context, file, content, changedBy string) (json.RawMessage, error) {
	return c.Do(ctx, updateWikiReq{File: file, Content: content, ChangedBy: changedBy})
}

// ListWiki returns the paths of all documentation pages.
func (c *Client) ListWiki(ctx context.Context) ([]string, error) {
	result, err := call[wikiIndex](ctx, c, listWikiReq{})
	return result.Paths, err
}

// LoadWiki returns the content of one documentation page.
func (c *Client) LoadWiki(ctx context.Context, path string) (string, error) {
	result, err := call[wikiPage](ctx, c, loadWikiReq{File: path})
	return result.Content, err
}
