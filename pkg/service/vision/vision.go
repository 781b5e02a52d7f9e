// Package vision provides image generation and image understanding
// over the Together AI REST API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/himeno-lab/kotori/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultGenerationBaseURL = "https://api.together.xyz/v1"
	defaultGenerationModel   = "black-forest-labs/FLUX.1-schnell-Free"
	defaultVisionModel       = "meta-llama/Llama-Vision-Free"
	defaultImageWidth        = 1024
	defaultImageHeight       = 768
)

// Synthesizer renders images from visual prompts
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// SynthesizerOption configures a Synthesizer
type SynthesizerOption func(*Synthesizer)

// WithGenerationBaseURL overrides the API endpoint, mainly for tests
func WithGenerationBaseURL(u string) SynthesizerOption {
	return func(s *Synthesizer) { s.baseURL = u }
}

// WithGenerationModel selects the image model
func WithGenerationModel(m string) SynthesizerOption {
	return func(s *Synthesizer) { s.model = m }
}

// NewSynthesizer creates an image generation client
func NewSynthesizer(apiKey string, opts ...SynthesizerOption) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, goerr.New("image generation API key is required")
	}
	s := &Synthesizer{
		apiKey:  apiKey,
		baseURL: defaultGenerationBaseURL,
		model:   defaultGenerationModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate renders the prompt into image bytes
func (s *Synthesizer) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, goerr.New("image prompt is empty")
	}

	body, err := json.Marshal(map[string]any{
		"model":           s.model,
		"prompt":          prompt,
		"width":           defaultImageWidth,
		"height":          defaultImageHeight,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create generation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "image generation request failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("image generation returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode generation response")
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, goerr.New("image generation returned no image")
	}

	img, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode generated image")
	}
	return img, nil
}

// Describer answers a prompt about an image via a vision-capable chat
// completion endpoint.
type Describer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// DescriberOption configures a Describer
type DescriberOption func(*Describer)

// WithVisionBaseURL overrides the API endpoint, mainly for tests
func WithVisionBaseURL(u string) DescriberOption {
	return func(d *Describer) { d.baseURL = u }
}

// NewDescriber creates an image understanding client
func NewDescriber(apiKey string, opts ...DescriberOption) (*Describer, error) {
	if apiKey == "" {
		return nil, goerr.New("vision API key is required")
	}
	d := &Describer{
		apiKey:  apiKey,
		baseURL: defaultGenerationBaseURL,
		model:   defaultVisionModel,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Describe returns a textual description of the image, guided by the
// given instruction prompt.
func (d *Describer) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", goerr.New("image payload is empty")
	}
	if prompt == "" {
		prompt = "Describe what you see in this picture."
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	body, err := json.Marshal(map[string]any{
		"model": d.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURI}},
				},
			},
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal vision request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create vision request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "vision request failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", goerr.New("vision returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(err, "failed to decode vision response")
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", goerr.New("vision returned empty description")
	}
	return result.Choices[0].Message.Content, nil
}
