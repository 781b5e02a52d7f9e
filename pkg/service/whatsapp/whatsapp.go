// Package whatsapp is a client for the WhatsApp Cloud API: sending
// text/audio/image replies and fetching inbound media.
package whatsapp

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

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Client talks to the WhatsApp Cloud API for one phone number
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	client        *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the Graph API endpoint, mainly for tests
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates a WhatsApp Cloud API client
func New(token, phoneNumberID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.New("WhatsApp access token is required")
	}
	if phoneNumberID == "" {
		return nil, goerr.New("WhatsApp phone number ID is required")
	}
	c := &Client{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       defaultBaseURL,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendText delivers a text message to the recipient
func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return c.sendMessage(ctx, payload)
}

// SendAudio delivers previously uploaded audio by media ID
func (c *Client) SendAudio(ctx context.Context, to, mediaID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]string{"id": mediaID},
	}
	return c.sendMessage(ctx, payload)
}

// SendImage delivers a previously uploaded image by media ID, with an
// optional caption.
func (c *Client) SendImage(ctx context.Context, to, mediaID, caption string) error {
	image := map[string]string{"id": mediaID}
	if caption != "" {
		image["caption"] = caption
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             image,
	}
	return c.sendMessage(ctx, payload)
}

func (c *Client) sendMessage(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal message payload")
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to create message request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "message request failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.New("message send returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}
	return nil
}

// UploadMedia uploads media bytes and returns the assigned media ID
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	if len(data) == 0 {
		return "", goerr.New("media payload is empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create multipart field")
	}
	if _, err := fw.Write(data); err != nil {
		return "", goerr.Wrap(err, "failed to write media payload")
	}
	if err := mw.WriteField("type", mimeType); err != nil {
		return "", goerr.Wrap(err, "failed to write type field")
	}
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", goerr.Wrap(err, "failed to write messaging_product field")
	}
	if err := mw.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize multipart body")
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "media upload failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", goerr.New("media upload returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(err, "failed to decode upload response")
	}
	if result.ID == "" {
		return "", goerr.New("media upload returned no ID")
	}
	return result.ID, nil
}

// DownloadMedia fetches inbound media bytes by media ID. The Cloud API
// resolves the ID to a short-lived URL first.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	if mediaID == "" {
		return nil, goerr.New("media ID is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create media lookup request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "media lookup failed")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("media lookup returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("media_id", mediaID),
			goerr.V("body", string(msg)),
		)
	}

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, goerr.Wrap(err, "failed to decode media metadata")
	}
	if meta.URL == "" {
		return nil, goerr.New("media metadata has no URL", goerr.V("media_id", mediaID))
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create media download request")
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.token)

	dlResp, err := c.client.Do(dlReq)
	if err != nil {
		return nil, goerr.Wrap(err, "media download failed")
	}
	defer safe.Close(ctx, dlResp.Body)

	if dlResp.StatusCode != http.StatusOK {
		return nil, goerr.New("media download returned error",
			goerr.V("status", dlResp.StatusCode),
			goerr.V("media_id", mediaID),
		)
	}

	data, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read media body")
	}
	return data, nil
}
