// Package distill turns the company's documentation corpus into a compact
// rule set the agent can carry in its system prompt.
//
// Distillation is expensive, so the result is cached under a fingerprint of
// the corpus: as long as no page changes, every task reuses the same rules
// and the rendered prompt prefix stays byte-stable for provider-side caching.
package distill

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/stepwise/llm"
)

// Audience scopes a rule to a class of actors.
type Audience string

const (
	// AudienceGuest rules apply only when the actor is unauthenticated.
	AudienceGuest Audience = "guest"
	// AudienceUser rules apply only to authenticated employees.
	AudienceUser Audience = "user"
	// AudienceOther rules apply regardless of who is asking.
	AudienceOther Audience = "other"
)

// Rule is one operational constraint extracted from the documentation. The
// relevance summary records why the rule matters to an automated agent; the
// model must commit to a reason before it may state the rule.
type Rule struct {
	WhyRelevant string   `json:"why_relevant_summary"`
	Audience    Audience `json:"audience"`
	Text        string   `json:"rule"`
}

// Knowledge is the distilled form of the documentation corpus.
type Knowledge struct {
	CompanyName string   `json:"company_name"`
	Locations   []string `json:"company_locations"`
	Execs       []string `json:"company_execs"`
	Rules       []Rule   `json:"rules"`
}

// Validate rejects a distillation result that would leave the agent blind.
func (k *Knowledge) Validate() error {
	if strings.TrimSpace(k.CompanyName) == "" {
		return fmt.Errorf("empty company name")
	}
	if len(k.Rules) == 0 {
		return fmt.Errorf("no rules extracted")
	}
	for i, r := range k.Rules {
		switch r.Audience {
		case AudienceGuest, AudienceUser, AudienceOther:
		default:
			return fmt.Errorf("rule %d has unknown audience %q", i, r.Audience)
		}
		if strings.TrimSpace(r.Text) == "" {
			return fmt.Errorf("rule %d is empty", i)
		}
		if strings.TrimSpace(r.WhyRelevant) == "" {
			return fmt.Errorf("rule %d has no relevance summary", i)
		}
	}
	return nil
}

// RulesFor returns the rules that bind the given actor class, in corpus order.
func (k *Knowledge) RulesFor(authenticated bool) []Rule {
	scoped := AudienceGuest
	if authenticated {
		scoped = AudienceUser
	}
	var out []Rule
	for _, r := range k.Rules {
		if r.Audience == AudienceOther || r.Audience == scoped {
			out = append(out, r)
		}
	}
	return out
}

// Page is one documentation page.
type Page struct {
	Path    string
	Content string
}

// DocSource lists and loads documentation pages. *remote.Client satisfies it.
type DocSource interface {
	ListWiki(ctx context.Context) ([]string, error)
	LoadWiki(ctx context.Context, path string) (string, error)
}

// LoadCorpus fetches every documentation page, sorted by path.
func LoadCorpus(ctx context.Context, src DocSource) ([]Page, error) {
	paths, err := src.ListWiki(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documentation: %w", err)
	}
	sort.Strings(paths)

	pages := make([]Page, 0, len(paths))
	for _, path := range paths {
		content, err := src.LoadWiki(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		pages = append(pages, Page{Path: path, Content: content})
	}
	return pages, nil
}

// Fingerprint hashes the corpus. Pages are sorted and every string is
// length-prefixed, so neither page order nor a path/content boundary shift
// can collide.
func Fingerprint(pages []Page) string {
	sorted := make([]Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	var size [8]byte
	writeField := func(s string) {
		binary.BigEndian.PutUint64(size[:], uint64(len(s)))
		h.Write(size[:])
		h.Write([]byte(s))
	}
	for _, p := range sorted {
		writeField(p.Path)
		writeField(p.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

const distillInstructions = `You are preparing an operations brief for an automated assistant working inside a company's back-office.

Read the documentation below and extract:
1. company_name, company_locations, company_execs: who the company is, where it operates and who runs it.
2. rules: every policy, permission boundary or procedure an assistant must obey when acting on behalf of someone. For each rule first state why_relevant_summary, why the rule matters to the assistant, then set audience to "guest" if it only constrains unauthenticated visitors, "user" if it only constrains logged-in employees, or "other" if it always applies.

State each rule as a single imperative sentence. Do not invent rules the documentation does not support.`

// Distiller produces and caches Knowledge for a documentation corpus.
type Distiller struct {
	client       *llm.Client
	store        Store
	actionSchema json.RawMessage
	logger       *zap.Logger
}

// NewDistiller wires a distiller. actionSchema is the decision contract the
// rules will be used against; it is embedded in the distillation prompt so
// the rules are phrased in terms of callable operations. A nil logger
// disables tracing.
func NewDistiller(client *llm.Client, store Store, actionSchema json.RawMessage, logger *zap.Logger) *Distiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distiller{client: client, store: store, actionSchema: actionSchema, logger: logger}
}

// Materialize returns the Knowledge for the source's current corpus, running
// the distillation model call only when the fingerprint is not cached.
func (d *Distiller) Materialize(ctx context.Context, src DocSource) (Knowledge, string, error) {
	pages, err := LoadCorpus(ctx, src)
	if err != nil {
		return Knowledge{}, "", err
	}
	fp := Fingerprint(pages)

	if cached, ok, err := d.store.Get(fp); err != nil {
		return Knowledge{}, "", fmt.Errorf("read knowledge cache: %w", err)
	} else if ok {
		d.logger.Debug("knowledge cache hit", zap.String("fingerprint", fp))
		return cached, fp, nil
	}

	d.logger.Info("distilling documentation",
		zap.Int("pages", len(pages)),
		zap.String("fingerprint", fp))

	knowledge, err := d.distill(ctx, pages)
	if err != nil {
		return Knowledge{}, "", err
	}
	if err := d.store.Put(fp, knowledge); err != nil {
		return Knowledge{}, "", fmt.Errorf("write knowledge cache: %w", err)
	}
	return knowledge, fp, nil
}

func (d *Distiller) distill(ctx context.Context, pages []Page) (Knowledge, error) {
	var corpus strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&corpus, "=== %s ===\n%s\n\n", p.Path, p.Content)
	}

	instructions := distillInstructions
	if len(d.actionSchema) > 0 {
		instructions += "\n\nThe rules will be used by an agent operating through this API:\n" + string(d.actionSchema)
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(instructions),
		llm.UserMessage(corpus.String()),
	}
	knowledge, err := llm.Query[Knowledge](ctx, d.client, messages,
		llm.NewJSONSchemaFormat("company_knowledge", knowledgeSchema()))
	if err != nil {
		return Knowledge{}, fmt.Errorf("distill documentation: %w", err)
	}
	return knowledge, nil
}

func knowledgeSchema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"company_name": map[string]any{
				"type": "string",
			},
			"company_locations": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"company_execs": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"rules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"why_relevant_summary": map[string]any{
							"type":        "string",
							"description": "why this rule matters to the agent",
						},
						"audience": map[string]any{
							"type": "string",
							"enum": []any{string(AudienceGuest), string(AudienceUser), string(AudienceOther)},
						},
						"rule": map[string]any{
							"type":        "string",
							"description": "one imperative sentence",
						},
					},
					"required":             []string{"why_relevant_summary", "audience", "rule"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"company_name", "company_locations", "company_execs", "rules"},
		"additionalProperties": false,
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return raw
}
