package config

import (
	"github.com/himeno-lab/kotori/pkg/service/speech"
	"github.com/himeno-lab/kotori/pkg/service/vision"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Speech holds CLI flags for speech synthesis and transcription.
// Both are optional; leaving a key empty disables that capability.
type Speech struct {
	synthesisKey     string
	voiceID          string
	transcriptionKey string
}

// Flags returns CLI flags for speech configuration
func (s *Speech) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "speech-api-key",
			Usage:       "ElevenLabs API key for speech synthesis (empty to disable audio replies)",
			Sources:     cli.EnvVars("KOTORI_SPEECH_API_KEY"),
			Destination: &s.synthesisKey,
		},
		&cli.StringFlag{
			Name:        "speech-voice-id",
			Usage:       "ElevenLabs voice ID",
			Sources:     cli.EnvVars("KOTORI_SPEECH_VOICE_ID"),
			Destination: &s.voiceID,
		},
		&cli.StringFlag{
			Name:        "transcription-api-key",
			Usage:       "Groq API key for audio transcription (empty to disable inbound audio)",
			Sources:     cli.EnvVars("KOTORI_TRANSCRIPTION_API_KEY"),
			Destination: &s.transcriptionKey,
		},
	}
}

// ConfigureSynthesizer creates the speech synthesizer, or nil when no
// API key is configured.
func (s *Speech) ConfigureSynthesizer() (*speech.Synthesizer, error) {
	if s.synthesisKey == "" {
		logging.Default().Info("Speech synthesis not configured, audio replies disabled")
		return nil, nil
	}
	var opts []speech.SynthesizerOption
	if s.voiceID != "" {
		opts = append(opts, speech.WithVoiceID(s.voiceID))
	}
	return speech.NewSynthesizer(s.synthesisKey, opts...)
}

// ConfigureTranscriber creates the transcriber, or nil when no API key
// is configured.
func (s *Speech) ConfigureTranscriber() (*speech.Transcriber, error) {
	if s.transcriptionKey == "" {
		logging.Default().Info("Transcription not configured, inbound audio disabled")
		return nil, nil
	}
	return speech.NewTranscriber(s.transcriptionKey)
}

// Vision holds CLI flags for image generation and understanding.
// Both share one Together AI key; empty disables image features.
type Vision struct {
	apiKey string
	model  string
}

// Flags returns CLI flags for vision configuration
func (v *Vision) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vision-api-key",
			Usage:       "Together AI API key for image generation and understanding (empty to disable)",
			Sources:     cli.EnvVars("KOTORI_VISION_API_KEY"),
			Destination: &v.apiKey,
		},
		&cli.StringFlag{
			Name:        "vision-image-model",
			Usage:       "Image generation model name",
			Sources:     cli.EnvVars("KOTORI_VISION_IMAGE_MODEL"),
			Destination: &v.model,
		},
	}
}

// ConfigureSynthesizer creates the image generator, or nil when no API
// key is configured.
func (v *Vision) ConfigureSynthesizer() (*vision.Synthesizer, error) {
	if v.apiKey == "" {
		logging.Default().Info("Image generation not configured, image replies disabled")
		return nil, nil
	}
	var opts []vision.SynthesizerOption
	if v.model != "" {
		opts = append(opts, vision.WithGenerationModel(v.model))
	}
	return vision.NewSynthesizer(v.apiKey, opts...)
}

// ConfigureDescriber creates the image describer, or nil when no API
// key is configured.
func (v *Vision) ConfigureDescriber() (*vision.Describer, error) {
	if v.apiKey == "" {
		logging.Default().Info("Image understanding not configured, inbound images disabled")
		return nil, nil
	}
	return vision.NewDescriber(v.apiKey)
}
