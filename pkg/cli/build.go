package cli

import (
	"context"

	"github.com/himeno-lab/kotori/pkg/cli/config"
	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/graph"
	"github.com/himeno-lab/kotori/pkg/service/memory"
	"github.com/himeno-lab/kotori/pkg/service/persona"
	"github.com/m-mizutani/goerr/v2"
)

// runtime bundles the wired orchestrator and the resources that must be
// released on shutdown.
type runtime struct {
	graph       *graph.Graph
	transcriber interfaces.SpeechTranscriber
	describer   interfaces.ImageDescriber
	closers     []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// buildRuntime wires the full turn pipeline from the shared config
// sections. It is used by both the serve and chat commands.
func buildRuntime(
	ctx context.Context,
	geminiCfg *config.Gemini,
	repoCfg *config.Repository,
	scheduleCfg *config.Schedule,
	speechCfg *config.Speech,
	visionCfg *config.Vision,
) (*runtime, error) {
	rt := &runtime{}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM client")
	}

	threads, err := repoCfg.ConfigureThreads(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure thread repository")
	}
	rt.closers = append(rt.closers, threads.Close)

	index, err := repoCfg.ConfigureMemoryIndex(ctx)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to configure memory index")
	}
	rt.closers = append(rt.closers, index.Close)

	store, err := memory.NewStore(index, llmClient)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to create memory store")
	}

	manager, err := memory.NewManager(store, llmClient)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to create memory manager")
	}

	responder, err := persona.New(llmClient)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to create responder")
	}

	activities, err := scheduleCfg.Configure()
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to configure activity schedule")
	}

	// Optional capabilities. Assign through the concrete type first so
	// an absent capability stays a nil interface.
	var speechSynth interfaces.SpeechSynthesizer
	if synth, err := speechCfg.ConfigureSynthesizer(); err != nil {
		rt.Close()
		return nil, err
	} else if synth != nil {
		speechSynth = synth
	}

	if transcriber, err := speechCfg.ConfigureTranscriber(); err != nil {
		rt.Close()
		return nil, err
	} else if transcriber != nil {
		rt.transcriber = transcriber
	}

	var imageSynth interfaces.ImageSynthesizer
	if synth, err := visionCfg.ConfigureSynthesizer(); err != nil {
		rt.Close()
		return nil, err
	} else if synth != nil {
		imageSynth = synth
	}

	if describer, err := visionCfg.ConfigureDescriber(); err != nil {
		rt.Close()
		return nil, err
	} else if describer != nil {
		rt.describer = describer
	}

	g, err := graph.New(threads, manager, responder, activities, speechSynth, imageSynth)
	if err != nil {
		rt.Close()
		return nil, goerr.Wrap(err, "failed to build orchestration graph")
	}
	rt.graph = g

	return rt, nil
}
