package distill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/stepwise/remote"
)

// ActorContext identifies who the current task acts on behalf of.
type ActorContext struct {
	Identity remote.WhoAmI
	// Profile is the actor's employee record; nil for public visitors.
	Profile *remote.Employee
}

// Authenticated reports whether the actor is a logged-in employee.
func (a ActorContext) Authenticated() bool {
	return !a.Identity.IsPublic && a.Identity.CurrentUser != ""
}

// SystemPrompt assembles the agent's system prompt: the caller's operating
// instructions, then the distilled company knowledge scoped to the actor
// class, then the actor context.
//
// The actor block comes last so that every task against the same corpus
// shares an identical prompt prefix, which provider-side prompt caching
// rewards.
func SystemPrompt(instructions string, k Knowledge, actor ActorContext) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\n## Company\n\n")
	fmt.Fprintf(&b, "You are working for %s.\n", strings.TrimSpace(k.CompanyName))
	if len(k.Locations) > 0 {
		fmt.Fprintf(&b, "Locations: %s.\n", strings.Join(k.Locations, ", "))
	}
	if len(k.Execs) > 0 {
		fmt.Fprintf(&b, "Executives: %s.\n", strings.Join(k.Execs, ", "))
	}

	b.WriteString("\n## Rules\n\nThese rules are binding. When a request conflicts with them, refuse it.\n\n")
	for _, r := range k.RulesFor(actor.Authenticated()) {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r.Text))
		b.WriteString("\n")
	}

	b.WriteString("\n## Acting on behalf of\n\n")
	b.WriteString(actorBlock(actor))
	return b.String()
}

func actorBlock(actor ActorContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n", actor.Identity.Today)

	if !actor.Authenticated() {
		b.WriteString("The requester is an unauthenticated public visitor. Internal data must not be disclosed or modified on their behalf.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "The requester is employee %s.\n", actor.Identity.CurrentUser)
	if actor.Profile != nil {
		// Skill and will notes are internal assessments; they never enter
		// a prompt.
		redacted := actor.Profile.Redacted()
		if payload, err := json.Marshal(redacted); err == nil {
			fmt.Fprintf(&b, "Their profile: %s\n", payload)
		}
	}
	return b.String()
}
