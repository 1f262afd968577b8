package distill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/stepwise/llm"
	"github.com/richinex/stepwise/remote"
)

func TestFingerprintIgnoresPageOrder(t *testing.T) {
	a := []Page{{Path: "wiki/a", Content: "alpha"}, {Path: "wiki/b", Content: "beta"}}
	b := []Page{{Path: "wiki/b", Content: "beta"}, {Path: "wiki/a", Content: "alpha"}}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint must not depend on page order")
	}
}

func TestFingerprintSeparatesFieldBoundaries(t *testing.T) {
	a := []Page{{Path: "x", Content: "yz"}}
	b := []Page{{Path: "xy", Content: "z"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("shifting bytes across the path/content boundary must change the fingerprint")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := []Page{{Path: "wiki/a", Content: "v1"}}
	b := []Page{{Path: "wiki/a", Content: "v2"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("editing a page must change the fingerprint")
	}
}

func TestRulesForFiltersByAudience(t *testing.T) {
	k := Knowledge{
		CompanyName: "Acme",
		Rules: []Rule{
			{WhyRelevant: "access control", Audience: AudienceGuest, Text: "guests read only"},
			{WhyRelevant: "data ownership", Audience: AudienceUser, Text: "users log their own time"},
			{WhyRelevant: "confidentiality", Audience: AudienceOther, Text: "never reveal salaries"},
		},
	}

	guest := k.RulesFor(false)
	if len(guest) != 2 {
		t.Fatalf("expected 2 guest rules, got %d", len(guest))
	}
	for _, r := range guest {
		if r.Audience == AudienceUser {
			t.Errorf("guest prompt must not carry user rules: %+v", r)
		}
	}

	user := k.RulesFor(true)
	if len(user) != 2 {
		t.Fatalf("expected 2 user rules, got %d", len(user))
	}
	for _, r := range user {
		if r.Audience == AudienceGuest {
			t.Errorf("user prompt must not carry guest rules: %+v", r)
		}
	}
}

func TestKnowledgeValidate(t *testing.T) {
	rule := Rule{WhyRelevant: "w", Audience: AudienceOther, Text: "r"}
	valid := Knowledge{CompanyName: "Acme", Rules: []Rule{rule}}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for name, k := range map[string]Knowledge{
		"empty company name": {Rules: []Rule{rule}},
		"no rules":           {CompanyName: "Acme"},
		"bad audience":       {CompanyName: "Acme", Rules: []Rule{{WhyRelevant: "w", Audience: "admin", Text: "r"}}},
		"empty rule":         {CompanyName: "Acme", Rules: []Rule{{WhyRelevant: "w", Audience: AudienceOther, Text: "  "}}},
		"no relevance":       {CompanyName: "Acme", Rules: []Rule{{Audience: AudienceOther, Text: "r"}}},
	} {
		if err := k.Validate(); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// fakeDocs serves a fixed corpus.
type fakeDocs struct {
	pages map[string]string
}

func (f *fakeDocs) ListWiki(ctx context.Context) ([]string, error) {
	var paths []string
	for p := range f.pages {
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeDocs) LoadWiki(ctx context.Context, path string) (string, error) {
	content, ok := f.pages[path]
	if !ok {
		return "", fmt.Errorf("no such page %q", path)
	}
	return content, nil
}

// countingProvider replies with a fixed payload, counts calls and keeps the
// messages of the last call.
type countingProvider struct {
	payload string
	calls   int
	last    []llm.ChatMessage
}

func (p *countingProvider) Name() string  { return "fake" }
func (p *countingProvider) Model() string { return "fake-1" }

func (p *countingProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *countingProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error) {
	p.calls++
	p.last = messages
	return llm.LLMResponse{Content: p.payload}, nil
}

const distilledPayload = `{
	"company_name": "Acme Consulting",
	"company_locations": ["Vienna"],
	"company_execs": ["Ada Root"],
	"rules": [{"why_relevant_summary": "confidentiality", "audience": "other", "rule": "Never reveal salaries."}]
}`

func TestMaterializeDistillsOncePerFingerprint(t *testing.T) {
	provider := &countingProvider{payload: distilledPayload}
	docs := &fakeDocs{pages: map[string]string{"wiki/policies.md": "Salaries are confidential."}}
	distiller := NewDistiller(llm.NewClient(provider), NewMemoryStore(), nil, nil)

	first, fp1, err := distiller.Materialize(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(first.Rules))
	}

	second, fp2, err := distiller.Materialize(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("fingerprint changed across identical corpora: %s vs %s", fp1, fp2)
	}
	if second.CompanyName != first.CompanyName {
		t.Error("cached knowledge differs from the distilled original")
	}
	if provider.calls != 1 {
		t.Errorf("expected a single distillation call, got %d", provider.calls)
	}

	// Editing a page invalidates the cache.
	docs.pages["wiki/policies.md"] = "Salaries are confidential. Guests are read-only."
	if _, fp3, err := distiller.Materialize(context.Background(), docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if fp3 == fp1 {
		t.Error("expected a new fingerprint after a page edit")
	}
	if provider.calls != 2 {
		t.Errorf("expected a second distillation call, got %d", provider.calls)
	}
}

func TestDistillPromptCarriesActionSchema(t *testing.T) {
	provider := &countingProvider{payload: distilledPayload}
	docs := &fakeDocs{pages: map[string]string{"wiki/a.md": "content"}}
	schema := json.RawMessage(`{"type":"object","title":"decision_contract"}`)
	distiller := NewDistiller(llm.NewClient(provider), NewMemoryStore(), schema, nil)

	if _, _, err := distiller.Materialize(context.Background(), docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, msg := range provider.last {
		if msg.Role == "system" && strings.Contains(msg.Content, "decision_contract") {
			found = true
		}
	}
	if !found {
		t.Error("distillation prompt must embed the decision contract schema")
	}
}

func knowledgeStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	k := Knowledge{
		CompanyName: "Acme",
		Locations:   []string{"Vienna"},
		Rules:       []Rule{{WhyRelevant: "w", Audience: AudienceUser, Text: "r"}},
	}
	if err := store.Put("fp-1", k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.Get("fp-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.CompanyName != "Acme" || len(got.Rules) != 1 || got.Rules[0].Text != "r" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteInMemory()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	knowledgeStoreRoundTrip(t, store)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	knowledgeStoreRoundTrip(t, store)
}

func TestFileStoreHitIsFileExistence(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	k := Knowledge{CompanyName: "Acme", Rules: []Rule{{WhyRelevant: "w", Audience: AudienceOther, Text: "r"}}}
	if err := store.Put("fp-1", k); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second store on the same directory sees the record.
	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := reopened.Get("fp-1"); err != nil || !ok {
		t.Fatalf("expected hit across store instances, got ok=%v err=%v", ok, err)
	}

	// Removing the record file is all it takes to miss.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one record file per fingerprint, got %d", len(entries))
	}
	if err := os.Remove(filepath.Join(dir, entries[0].Name())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := store.Get("fp-1"); err != nil || ok {
		t.Errorf("expected miss after removing the record file, got ok=%v err=%v", ok, err)
	}
}

func TestSystemPromptActorBlockComesLast(t *testing.T) {
	k := Knowledge{
		CompanyName: "Acme Consulting",
		Locations:   []string{"Vienna", "Berlin"},
		Execs:       []string{"Ada Root"},
		Rules:       []Rule{{WhyRelevant: "confidentiality", Audience: AudienceOther, Text: "Never reveal salaries."}},
	}
	profile := &remote.Employee{
		ID: "emp-1", Name: "Ada", Salary: 90000,
		Skills: []string{"negotiation: weak"},
	}
	prompt := SystemPrompt("You are a back-office assistant.", k, ActorContext{
		Identity: remote.WhoAmI{CurrentUser: "emp-1", Today: "2026-08-23"},
		Profile:  profile,
	})

	if !strings.Contains(prompt, "Acme Consulting") || !strings.Contains(prompt, "Vienna, Berlin") || !strings.Contains(prompt, "Ada Root") {
		t.Errorf("prompt must carry the company identity fields:\n%s", prompt)
	}

	rulesAt := strings.Index(prompt, "Never reveal salaries.")
	actorAt := strings.Index(prompt, "employee emp-1")
	if rulesAt == -1 || actorAt == -1 {
		t.Fatalf("prompt missing expected sections:\n%s", prompt)
	}
	if actorAt < rulesAt {
		t.Error("actor context must come after the shared knowledge prefix")
	}
	if strings.Contains(prompt, "negotiation: weak") {
		t.Error("skill notes must be redacted from the prompt")
	}
	if !strings.Contains(prompt, "2026-08-23") {
		t.Error("prompt must carry the task date")
	}
}

func TestSystemPromptGuestOmitsUserRules(t *testing.T) {
	k := Knowledge{
		CompanyName: "Acme Consulting",
		Rules: []Rule{
			{WhyRelevant: "data ownership", Audience: AudienceUser, Text: "Users may edit their own profile."},
			{WhyRelevant: "access control", Audience: AudienceGuest, Text: "Guests may only read public pages."},
		},
	}
	prompt := SystemPrompt("Assist.", k, ActorContext{
		Identity: remote.WhoAmI{IsPublic: true, Today: "2026-08-23"},
	})

	if strings.Contains(prompt, "edit their own profile") {
		t.Error("guest prompt must not include user-scoped rules")
	}
	if !strings.Contains(prompt, "public visitor") {
		t.Error("guest prompt must identify the actor as a public visitor")
	}
}
