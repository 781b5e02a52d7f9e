package persona

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/gollem-dev/gollem"
)

//go:embed prompt/character.md
var characterPromptTmpl string

//go:embed prompt/router.md
var routerPrompt string

//go:embed prompt/scenario.md
var scenarioPromptTmpl string

var (
	characterPrompt = template.Must(template.New("character").Parse(characterPromptTmpl))
	scenarioPrompt  = template.Must(template.New("scenario").Parse(scenarioPromptTmpl))

	// Some models narrate actions between asterisks despite the prompt;
	// strip them so chat transports never show stage directions.
	asteriskContent = regexp.MustCompile(`\*.*?\*`)
)

// Service generates the persona's responses and the structured
// decisions (routing, image scenario, summarization) around them.
type Service struct {
	llm gollem.LLMClient
}

// New creates a persona service with the provided LLM client
func New(llmClient gollem.LLMClient) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llm: llmClient}, nil
}

// ReplyInput carries everything the character card needs for one reply
type ReplyInput struct {
	Messages        []model.Message
	Summary         string
	CurrentActivity string
	MemoryContext   string
}

// Reply generates the persona's next chat message
func (s *Service) Reply(ctx context.Context, input ReplyInput) (string, error) {
	var buf bytes.Buffer
	if err := characterPrompt.Execute(&buf, map[string]string{
		"CurrentActivity": input.CurrentActivity,
		"MemoryContext":   input.MemoryContext,
		"Summary":         input.Summary,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute character prompt template")
	}

	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(buf.String()),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create reply session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(formatTranscript(input.Messages)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("reply generation returned empty result")
	}

	reply := strings.TrimSpace(asteriskContent.ReplaceAllString(strings.Join(resp.Texts, "\n"), ""))
	if reply == "" {
		return "", goerr.New("reply was empty after cleanup")
	}
	return reply, nil
}

// Route classifies the recent messages into a response modality label.
// The caller interprets the label; unrecognized labels fall back to the
// conversational path there.
func (s *Service) Route(ctx context.Context, messages []model.Message) (string, error) {
	schema := &gollem.Parameter{
		Title:       "RouterResponse",
		Description: "The response type to give to the user",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"response_type": {
				Type:        gollem.TypeString,
				Description: "One of: 'conversation', 'image' or 'audio'",
				Required:    true,
			},
		},
	}

	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(routerPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create router session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(formatTranscript(messages)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to classify response type")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("router returned empty result")
	}

	var decision struct {
		ResponseType string `json:"response_type"`
	}
	if err := json.Unmarshal([]byte(resp.Texts[0]), &decision); err != nil {
		return "", goerr.Wrap(err, "failed to parse router JSON", goerr.V("response", resp.Texts[0]))
	}
	return decision.ResponseType, nil
}

// Scenario is the persona's plan for a generated image
type Scenario struct {
	Narrative   string `json:"narrative"`
	ImagePrompt string `json:"image_prompt"`
}

// CreateScenario derives an image scene from the recent conversation
func (s *Service) CreateScenario(ctx context.Context, messages []model.Message) (*Scenario, error) {
	var buf bytes.Buffer
	if err := scenarioPrompt.Execute(&buf, map[string]string{
		"ChatHistory": formatTranscript(messages),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute scenario prompt template")
	}

	schema := &gollem.Parameter{
		Title:       "ScenarioPrompt",
		Description: "A narrative line and a visual prompt for image generation",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"narrative": {
				Type:        gollem.TypeString,
				Description: "First-person line introducing the picture",
				Required:    true,
			},
			"image_prompt": {
				Type:        gollem.TypeString,
				Description: "Detailed visual prompt to generate the image",
				Required:    true,
			},
		},
	}

	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create scenario session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buf.String()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image scenario")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("scenario generation returned empty result")
	}

	var scenario Scenario
	if err := json.Unmarshal([]byte(resp.Texts[0]), &scenario); err != nil {
		return nil, goerr.Wrap(err, "failed to parse scenario JSON", goerr.V("response", resp.Texts[0]))
	}
	if scenario.ImagePrompt == "" {
		return nil, goerr.New("scenario has no image prompt")
	}
	return &scenario, nil
}

// Summarize extends the prior summary with the given messages, or
// creates a fresh summary when there is none yet.
func (s *Service) Summarize(ctx context.Context, messages []model.Message, priorSummary string) (string, error) {
	var instruction string
	if priorSummary != "" {
		instruction = fmt.Sprintf(
			"This is the summary of the conversation to date between Kotori and the user: %s\n\nExtend the summary by taking into account the new messages above:",
			priorSummary,
		)
	} else {
		instruction = "Create a summary of the conversation above between Kotori and the user. The summary must be a short description of the conversation so far, but that captures all the relevant information shared between Kotori and the user:"
	}

	session, err := s.llm.NewSession(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create summary session")
	}

	prompt := formatTranscript(messages) + "\n\n" + instruction
	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}
	if len(resp.Texts) == 0 || strings.TrimSpace(resp.Texts[0]) == "" {
		return "", goerr.New("summary generation returned empty result")
	}
	return strings.TrimSpace(strings.Join(resp.Texts, "\n")), nil
}

// formatTranscript renders messages as a plain "Role: content" chat log
func formatTranscript(messages []model.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case types.RoleHuman:
			sb.WriteString("User: ")
		case types.RoleAssistant:
			sb.WriteString("Kotori: ")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
