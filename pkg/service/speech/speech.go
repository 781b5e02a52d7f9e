// Package speech provides speech synthesis and transcription over the
// ElevenLabs and Groq Whisper REST APIs.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/himeno-lab/kotori/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultSynthesisBaseURL     = "https://api.elevenlabs.io/v1"
	defaultTranscriptionBaseURL = "https://api.groq.com/openai/v1"
	defaultVoiceID              = "EXAVITQu4vr4xnSDxMaL"
	defaultSynthesisModel       = "eleven_flash_v2_5"
	defaultTranscriptionModel   = "whisper-large-v3-turbo"

	// maxSynthesisChars caps one synthesis request; the API rejects
	// longer inputs anyway, so fail fast without spending a call.
	maxSynthesisChars = 5000
)

// Synthesizer converts text into spoken audio
type Synthesizer struct {
	apiKey  string
	baseURL string
	voiceID string
	model   string
	client  *http.Client
}

// SynthesizerOption configures a Synthesizer
type SynthesizerOption func(*Synthesizer)

// WithSynthesisBaseURL overrides the API endpoint, mainly for tests
func WithSynthesisBaseURL(u string) SynthesizerOption {
	return func(s *Synthesizer) { s.baseURL = u }
}

// WithVoiceID selects the synthesis voice
func WithVoiceID(id string) SynthesizerOption {
	return func(s *Synthesizer) { s.voiceID = id }
}

// NewSynthesizer creates a speech synthesizer client
func NewSynthesizer(apiKey string, opts ...SynthesizerOption) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, goerr.New("speech synthesis API key is required")
	}
	s := &Synthesizer{
		apiKey:  apiKey,
		baseURL: defaultSynthesisBaseURL,
		voiceID: defaultVoiceID,
		model:   defaultSynthesisModel,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Synthesize renders text into audio bytes
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, goerr.New("synthesis text is empty")
	}
	if len(text) > maxSynthesisChars {
		return nil, goerr.New("synthesis text is too long", goerr.V("length", len(text)))
	}

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": s.model,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal synthesis request")
	}

	url := s.baseURL + "/text-to-speech/" + s.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create synthesis request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "speech synthesis request failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("speech synthesis returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read synthesized audio")
	}
	if len(audio) == 0 {
		return nil, goerr.New("speech synthesis returned empty audio")
	}
	return audio, nil
}

// Transcriber converts user audio into text
type Transcriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// TranscriberOption configures a Transcriber
type TranscriberOption func(*Transcriber)

// WithTranscriptionBaseURL overrides the API endpoint, mainly for tests
func WithTranscriptionBaseURL(u string) TranscriberOption {
	return func(t *Transcriber) { t.baseURL = u }
}

// NewTranscriber creates a speech transcription client
func NewTranscriber(apiKey string, opts ...TranscriberOption) (*Transcriber, error) {
	if apiKey == "" {
		return nil, goerr.New("transcription API key is required")
	}
	t := &Transcriber{
		apiKey:  apiKey,
		baseURL: defaultTranscriptionBaseURL,
		model:   defaultTranscriptionModel,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Transcribe converts audio bytes into text
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", goerr.New("transcription audio is empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return "", goerr.Wrap(err, "failed to create multipart field")
	}
	if _, err := fw.Write(audio); err != nil {
		return "", goerr.Wrap(err, "failed to write audio payload")
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", goerr.Wrap(err, "failed to write model field")
	}
	if err := mw.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize multipart body")
	}

	url := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create transcription request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "transcription request failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", goerr.New("transcription returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(err, "failed to decode transcription response")
	}
	if result.Text == "" {
		return "", goerr.New("transcription returned empty text")
	}
	return result.Text, nil
}
