package graph

import (
	"context"
	"fmt"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/himeno-lab/kotori/pkg/service/memory"
	"github.com/himeno-lab/kotori/pkg/service/persona"
	"github.com/himeno-lab/kotori/pkg/service/schedule"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// RouterWindow is how many trailing messages the router classifies
	RouterWindow = 3

	// ScenarioWindow is how many trailing messages feed image scenarios
	ScenarioWindow = 5

	// SummaryTrigger is the message count above which a summarization
	// pass runs at the end of the turn.
	SummaryTrigger = 20

	// SummaryKeep is how many recent messages survive a summarization
	SummaryKeep = 5
)

// Result is what one turn produced for the transport to deliver
type Result struct {
	Reply    string
	Workflow types.Workflow

	// Narrative and Image are set for image turns
	Narrative string
	Image     []byte

	// Audio is set for audio turns
	Audio []byte
}

// Graph runs the fixed per-turn node chain: memory extraction, routing,
// context injection, memory injection, generation, then summarization
// when the history grows past the trigger.
type Graph struct {
	threads    interfaces.ThreadRepository
	memories   *memory.Manager
	responder  *persona.Service
	activities *schedule.Provider
	speech     interfaces.SpeechSynthesizer
	images     interfaces.ImageSynthesizer

	locker *threadLocker
}

// New wires the graph. Thread repository, memory manager, responder and
// activity provider are required; speech and image synthesis are
// optional capabilities whose workflows degrade to conversation when
// absent.
func New(
	threads interfaces.ThreadRepository,
	memories *memory.Manager,
	responder *persona.Service,
	activities *schedule.Provider,
	speech interfaces.SpeechSynthesizer,
	images interfaces.ImageSynthesizer,
) (*Graph, error) {
	if threads == nil {
		return nil, goerr.New("thread repository is required")
	}
	if memories == nil {
		return nil, goerr.New("memory manager is required")
	}
	if responder == nil {
		return nil, goerr.New("responder is required")
	}
	if activities == nil {
		return nil, goerr.New("activity provider is required")
	}
	return &Graph{
		threads:    threads,
		memories:   memories,
		responder:  responder,
		activities: activities,
		speech:     speech,
		images:     images,
		locker:     newThreadLocker(),
	}, nil
}

// Run executes one turn for the thread: append the inbound message,
// walk the node chain, persist the resulting state, and return what to
// deliver. A generation failure aborts the turn and nothing is
// persisted.
func (g *Graph) Run(ctx context.Context, threadID types.ThreadID, inbound model.Message) (*Result, error) {
	if err := threadID.Validate(); err != nil {
		return nil, err
	}
	if inbound.Content == "" {
		return nil, goerr.New("inbound message is empty", goerr.V("thread_id", threadID))
	}

	unlock := g.locker.Lock(threadID)
	defer unlock()

	ts, err := g.threads.Get(ctx, threadID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load thread state", goerr.V("thread_id", threadID))
	}

	state := merge(stateFrom(ts), Output{AppendMessages: []model.Message{inbound}})

	state = merge(state, g.extractMemory(ctx, state))
	state = merge(state, g.route(ctx, state))
	state = merge(state, g.injectContext(ctx, state))
	state = merge(state, g.injectMemories(ctx, state))

	var result *Result
	var out Output
	switch state.Workflow {
	case types.WorkflowImage:
		result, out, err = g.generateImage(ctx, state)
	case types.WorkflowAudio:
		result, out, err = g.generateAudio(ctx, state)
	default:
		result, out, err = g.generateConversation(ctx, state)
	}
	if err != nil {
		return nil, err
	}
	state = merge(state, out)

	if len(state.Messages) > SummaryTrigger {
		state = merge(state, g.summarize(ctx, state))
	}

	state.applyTo(ts)
	if err := g.threads.Put(ctx, ts); err != nil {
		return nil, goerr.Wrap(err, "failed to persist thread state", goerr.V("thread_id", threadID))
	}
	return result, nil
}

// extractMemory analyzes the inbound message for long-term facts.
// Failures are logged and swallowed so memory issues never cost a turn.
func (g *Graph) extractMemory(ctx context.Context, state State) Output {
	last, ok := lastMessage(state.Messages)
	if !ok {
		return Output{}
	}
	if err := g.memories.ExtractAndStore(ctx, last); err != nil {
		logging.From(ctx).Warn("memory extraction failed, continuing turn", "error", err)
	}
	return Output{}
}

// route classifies the recent messages into a workflow. Classifier
// failures and unknown labels fall back to the conversation workflow.
func (g *Graph) route(ctx context.Context, state State) Output {
	window := model.RecentWindow(state.Messages, RouterWindow)
	label, err := g.responder.Route(ctx, window)
	if err != nil {
		logging.From(ctx).Warn("router failed, defaulting to conversation", "error", err)
		wf := types.WorkflowConversation
		return Output{Workflow: &wf}
	}

	wf := types.ParseWorkflow(label)
	if wf == types.WorkflowAudio && g.speech == nil {
		wf = types.WorkflowConversation
	}
	if wf == types.WorkflowImage && g.images == nil {
		wf = types.WorkflowConversation
	}
	return Output{Workflow: &wf}
}

// injectContext refreshes the current activity from the schedule.
// ApplyActivity marks an activity change since the previous turn.
func (g *Graph) injectContext(ctx context.Context, state State) Output {
	activity, ok := g.activities.CurrentActivity()
	if !ok {
		logging.From(ctx).Warn("no activity matched the current time")
		return Output{}
	}
	apply := activity != state.CurrentActivity
	return Output{CurrentActivity: &activity, ApplyActivity: &apply}
}

// injectMemories retrieves long-term memories relevant to the recent
// messages. Failures degrade to an empty memory block.
func (g *Graph) injectMemories(ctx context.Context, state State) Output {
	query := model.JoinContents(model.RecentWindow(state.Messages, RouterWindow), " ")
	memories, err := g.memories.GetRelevant(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("memory retrieval failed, continuing without memories", "error", err)
		empty := ""
		return Output{MemoryContext: &empty}
	}
	block := g.memories.FormatForPrompt(memories)
	return Output{MemoryContext: &block}
}

func (g *Graph) generateConversation(ctx context.Context, state State) (*Result, Output, error) {
	reply, err := g.responder.Reply(ctx, persona.ReplyInput{
		Messages:        state.Messages,
		Summary:         state.Summary,
		CurrentActivity: state.CurrentActivity,
		MemoryContext:   state.MemoryContext,
	})
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "conversation generation failed")
	}
	out := Output{AppendMessages: []model.Message{model.NewAssistantMessage(reply)}}
	return &Result{Reply: reply, Workflow: types.WorkflowConversation}, out, nil
}

func (g *Graph) generateImage(ctx context.Context, state State) (*Result, Output, error) {
	scenario, err := g.responder.CreateScenario(ctx, model.RecentWindow(state.Messages, ScenarioWindow))
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "image scenario generation failed")
	}

	img, err := g.images.Generate(ctx, scenario.ImagePrompt)
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "image synthesis failed")
	}

	note := model.NewHumanMessage(fmt.Sprintf("<image attached by Kotori, generated from prompt: %s>", scenario.ImagePrompt))
	withNote := append(append([]model.Message{}, state.Messages...), note)

	reply, err := g.responder.Reply(ctx, persona.ReplyInput{
		Messages:        withNote,
		Summary:         state.Summary,
		CurrentActivity: state.CurrentActivity,
		MemoryContext:   state.MemoryContext,
	})
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "conversation generation failed")
	}

	out := Output{AppendMessages: []model.Message{note, model.NewAssistantMessage(reply)}}
	return &Result{
		Reply:     reply,
		Workflow:  types.WorkflowImage,
		Narrative: scenario.Narrative,
		Image:     img,
	}, out, nil
}

func (g *Graph) generateAudio(ctx context.Context, state State) (*Result, Output, error) {
	reply, err := g.responder.Reply(ctx, persona.ReplyInput{
		Messages:        state.Messages,
		Summary:         state.Summary,
		CurrentActivity: state.CurrentActivity,
		MemoryContext:   state.MemoryContext,
	})
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "conversation generation failed")
	}

	audio, err := g.speech.Synthesize(ctx, reply)
	if err != nil {
		return nil, Output{}, goerr.Wrap(err, "speech synthesis failed")
	}

	out := Output{AppendMessages: []model.Message{model.NewAssistantMessage(reply)}}
	return &Result{Reply: reply, Workflow: types.WorkflowAudio, Audio: audio}, out, nil
}

// summarize folds the history into the running summary and keeps only
// the most recent messages. A summarization failure is logged and the
// full history is kept for the next turn.
func (g *Graph) summarize(ctx context.Context, state State) Output {
	summary, err := g.responder.Summarize(ctx, state.Messages, state.Summary)
	if err != nil {
		logging.From(ctx).Warn("summarization failed, keeping full history", "error", err)
		return Output{}
	}
	return Output{Summary: &summary, KeepLast: SummaryKeep}
}

func lastMessage(messages []model.Message) (model.Message, bool) {
	if len(messages) == 0 {
		return model.Message{}, false
	}
	return messages[len(messages)-1], true
}
