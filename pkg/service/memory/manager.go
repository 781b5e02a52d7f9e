package memory

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/gollem-dev/gollem"
)

// DedupThreshold is the cosine similarity at and above which two
// memories are treated as the same fact (inclusive).
const DedupThreshold = 0.9

// DefaultTopK is the default number of memories surfaced per retrieval
const DefaultTopK = 3

//go:embed prompt/memory_analysis.md
var analysisPromptTmpl string

var analysisPrompt = template.Must(template.New("memory_analysis").Parse(analysisPromptTmpl))

// analysisResult is the structured output of the importance analysis
type analysisResult struct {
	IsImportant     bool   `json:"is_important"`
	FormattedMemory string `json:"formatted_memory"`
}

// Manager gates what enters long-term memory and supplies what gets
// surfaced back into the prompt.
type Manager struct {
	store *Store
	llm   gollem.LLMClient
	topK  int
}

// Option is a functional option for Manager configuration
type Option func(*Manager)

// WithTopK overrides the number of memories retrieved per query
func WithTopK(k int) Option {
	return func(m *Manager) {
		if k > 0 {
			m.topK = k
		}
	}
}

// NewManager creates a Manager over the given store
func NewManager(store *Store, llmClient gollem.LLMClient, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, goerr.New("memory store is required")
	}
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	m := &Manager{
		store: store,
		llm:   llmClient,
		topK:  DefaultTopK,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ExtractAndStore analyzes the message and stores it as a long-term
// memory when it carries an important personal fact. Messages not
// authored by the user are ignored. A near-duplicate (similarity at or
// above DedupThreshold) reuses the existing record's identity so the
// fact is updated in place rather than duplicated.
func (m *Manager) ExtractAndStore(ctx context.Context, msg model.Message) error {
	if msg.Role != types.RoleHuman || msg.Content == "" {
		return nil
	}

	analysis, err := m.analyze(ctx, msg.Content)
	if err != nil {
		return goerr.Wrap(err, "memory analysis failed")
	}
	if !analysis.IsImportant || analysis.FormattedMemory == "" {
		return nil
	}

	logger := logging.From(ctx)

	id := model.NewMemoryID()
	nearest, err := m.store.Search(ctx, analysis.FormattedMemory, 1)
	if err != nil {
		return goerr.Wrap(err, "dedup lookup failed")
	}
	if len(nearest) > 0 && nearest[0].Score >= DedupThreshold {
		id = nearest[0].Memory.ID
		logger.Debug("updating near-duplicate memory",
			"memory_id", id,
			"similarity", nearest[0].Score,
		)
	}

	if err := m.store.Upsert(ctx, analysis.FormattedMemory, id, time.Now().UTC()); err != nil {
		return err
	}

	logger.Info("stored long-term memory", "memory_id", id, "text", analysis.FormattedMemory)
	return nil
}

// GetRelevant returns up to topK memory texts relevant to the context,
// in descending similarity order. An empty context or an empty store
// yields an empty slice, never an error.
func (m *Manager) GetRelevant(ctx context.Context, contextText string) ([]string, error) {
	if strings.TrimSpace(contextText) == "" {
		return nil, nil
	}

	results, err := m.store.Search(ctx, contextText, m.topK)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		logging.From(ctx).Debug("retrieved memory", "text", r.Memory.Text, "score", r.Score)
		texts = append(texts, r.Memory.Text)
	}
	return texts, nil
}

// FormatForPrompt renders memories as a bullet list. Empty input yields
// an empty string.
func (m *Manager) FormatForPrompt(memories []string) string {
	if len(memories) == 0 {
		return ""
	}

	lines := make([]string, len(memories))
	for i, mem := range memories {
		lines[i] = "- " + mem
	}
	return strings.Join(lines, "\n")
}

func (m *Manager) analyze(ctx context.Context, message string) (*analysisResult, error) {
	var buf bytes.Buffer
	if err := analysisPrompt.Execute(&buf, map[string]string{"Message": message}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute memory analysis template")
	}

	schema := &gollem.Parameter{
		Title:       "MemoryAnalysis",
		Description: "Result of analyzing a message for long-term memory storage",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"is_important": {
				Type:        gollem.TypeBoolean,
				Description: "Whether the message contains significant personal information to store",
				Required:    true,
			},
			"formatted_memory": {
				Type:        gollem.TypeString,
				Description: "The fact rewritten as a short third-person statement about the user. Empty string when not important.",
				Required:    true,
			},
		},
	}

	session, err := m.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create analysis session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buf.String()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate memory analysis")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("memory analysis returned empty result")
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(resp.Texts[0]), &result); err != nil {
		return nil, goerr.Wrap(err, "failed to parse memory analysis JSON", goerr.V("response", resp.Texts[0]))
	}
	return &result, nil
}
