package interfaces

import "context"

// SpeechSynthesizer converts reply text into audio bytes
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechTranscriber converts user audio into text
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ImageSynthesizer renders an image from a visual prompt
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ImageDescriber describes an image the user sent, in the context of
// the given instruction prompt.
type ImageDescriber interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}
