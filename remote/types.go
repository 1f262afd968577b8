// Package remote provides the client for the company back-office service.
//
// Every operation is a structured request posted to its tool path. Domain
// failures carry a machine code and a human-readable message and surface as
// *APIError; anything else is a transport failure and fatal to the caller.
package remote

import (
	"errors"
	"fmt"
	"strings"
)

// Request is any structured record that can be posted to the service.
// The tool path doubles as the action discriminator on the wire.
type Request interface {
	Tool() string
}

// APIError is a domain-level failure returned by the service.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// IsPageLimitExceeded reports whether err is the service's oversized-page
// rejection, the only error class that is retryable with a smaller page.
func IsPageLimitExceeded(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "page_limit_exceeded" ||
		strings.Contains(apiErr.Message, "page limit exceeded")
}

// IsDomainError reports whether err is a recoverable domain error
// (as opposed to a transport failure).
func IsDomainError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// WhoAmI describes the actor the current task runs on behalf of.
type WhoAmI struct {
	CurrentUser string `json:"current_user,omitempty"`
	IsPublic    bool   `json:"is_public"`
	Today       string `json:"today"`
}

// Link points at a domain entity in a terminal response.
type Link struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// TeamSlot is one member assignment on a project team.
type TeamSlot struct {
	Employee string `json:"employee"`
	Role     string `json:"role"`
}

// RoleLead marks the project lead in a team slot.
const RoleLead = "Lead"

// ProjectSummary is the paged-search projection of a project.
type ProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectDetail is the full project record.
type ProjectDetail struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Customer string     `json:"customer,omitempty"`
	Team     []TeamSlot `json:"team"`
}

// Employee is the full employee profile. Salary, notes, skills and wills are
// volatile fields; callers embedding a profile into a prompt must strip the
// skill/will notes first (see Redacted).
type Employee struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Location   string   `json:"location,omitempty"`
	Department string   `json:"department,omitempty"`
	Salary     int      `json:"salary,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Wills      []string `json:"wills,omitempty"`
}

// Redacted returns a copy of the profile with internal skill and will notes
// cleared, safe for inclusion in a prompt.
func (e Employee) Redacted() Employee {
	e.Skills = nil
	e.Wills = nil
	return e
}

// CompanySummary is the paged-search projection of a customer company.
type CompanySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompanyDetail is the full customer record.
type CompanyDetail struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	AccountManagers []string `json:"account_managers,omitempty"`
}

// TimeEntry is a logged unit of work.
type TimeEntry struct {
	ID       string  `json:"id"`
	Employee string  `json:"employee"`
	Project  string  `json:"project"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Note     string  `json:"note,omitempty"`
	Archived bool    `json:"archived,omitempty"`
}

// EndOfResults is the next-offset sentinel signaling the last page.
const EndOfResults = -1

// ProjectsPage is one page of a project search.
type ProjectsPage struct {
	Projects   []ProjectSummary `json:"projects"`
	NextOffset int              `json:"next_offset"`
}

// CompaniesPage is one page of a customer search.
type CompaniesPage struct {
	Companies  []CompanySummary `json:"companies"`
	NextOffset int              `json:"next_offset"`
}

// ProjectSearch filters a paged project search.
type ProjectSearch struct {
	Offset          int    `json:"offset"`
	Limit           int    `json:"limit"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	TeamMember      string `json:"-"`
}

// CustomerSearch filters a paged customer search.
type CustomerSearch struct {
	Offset         int    `json:"offset"`
	Limit          int    `json:"limit"`
	AccountManager string `json:"-"`
}
