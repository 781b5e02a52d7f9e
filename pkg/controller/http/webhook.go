package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/himeno-lab/kotori/pkg/graph"
	"github.com/himeno-lab/kotori/pkg/service/whatsapp"
	"github.com/himeno-lab/kotori/pkg/utils/async"
	"github.com/himeno-lab/kotori/pkg/utils/errutil"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// WebhookHandler receives WhatsApp Cloud API events, converts inbound
// media to text, runs a conversation turn, and sends the response back
// in the modality the turn chose.
type WebhookHandler struct {
	verifyToken string
	orchestrate *graph.Graph
	wa          *whatsapp.Client
	transcriber interfaces.SpeechTranscriber
	describer   interfaces.ImageDescriber
}

// NewWebhookHandler wires the webhook. Transcriber and describer are
// optional; inbound audio or images are rejected with a short text
// reply when the corresponding capability is absent.
func NewWebhookHandler(
	verifyToken string,
	orchestrate *graph.Graph,
	wa *whatsapp.Client,
	transcriber interfaces.SpeechTranscriber,
	describer interfaces.ImageDescriber,
) (*WebhookHandler, error) {
	if verifyToken == "" {
		return nil, goerr.New("webhook verify token is required")
	}
	if orchestrate == nil {
		return nil, goerr.New("graph is required")
	}
	if wa == nil {
		return nil, goerr.New("WhatsApp client is required")
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		orchestrate: orchestrate,
		wa:          wa,
		transcriber: transcriber,
		describer:   describer,
	}, nil
}

// HandleVerify answers the Cloud API subscription handshake
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// webhookEvent is the subset of the Cloud API event payload we consume
type webhookEvent struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Audio *struct {
		ID string `json:"id"`
	} `json:"audio"`
	Image *struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"image"`
}

// HandleEvent accepts an event batch, acknowledges it immediately, and
// processes each message in the background. The Cloud API retries on
// slow responses, so turns must not block the acknowledgment.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode webhook payload"), http.StatusBadRequest)
		return
	}

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				msg := msg
				async.Dispatch(r.Context(), func(ctx context.Context) error {
					return h.processMessage(ctx, msg)
				})
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) processMessage(ctx context.Context, msg inboundMessage) error {
	if msg.From == "" {
		return goerr.New("inbound message has no sender")
	}
	threadID := types.ThreadID(msg.From)

	content, err := h.inboundContent(ctx, msg)
	if err != nil {
		// Tell the user instead of dropping the message silently.
		if sendErr := h.wa.SendText(ctx, msg.From, "Sorry, I couldn't read that message. Could you send it as text?"); sendErr != nil {
			errutil.Handle(ctx, sendErr, "failed to send fallback reply")
		}
		return goerr.Wrap(err, "failed to read inbound message", goerr.V("message_id", msg.ID))
	}
	if content == "" {
		logging.From(ctx).Debug("ignoring message without content", "message_id", msg.ID, "type", msg.Type)
		return nil
	}

	result, err := h.orchestrate.Run(ctx, threadID, model.NewHumanMessage(content))
	if err != nil {
		return goerr.Wrap(err, "turn failed", goerr.V("thread_id", threadID))
	}

	return h.deliver(ctx, msg.From, result)
}

// inboundContent converts the message into text. Audio is transcribed;
// images are described and combined with their caption.
func (h *WebhookHandler) inboundContent(ctx context.Context, msg inboundMessage) (string, error) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return "", nil
		}
		return msg.Text.Body, nil

	case "audio":
		if msg.Audio == nil {
			return "", nil
		}
		if h.transcriber == nil {
			return "", goerr.New("audio received but transcription is not configured")
		}
		audio, err := h.wa.DownloadMedia(ctx, msg.Audio.ID)
		if err != nil {
			return "", err
		}
		return h.transcriber.Transcribe(ctx, audio)

	case "image":
		if msg.Image == nil {
			return "", nil
		}
		if h.describer == nil {
			return "", goerr.New("image received but image understanding is not configured")
		}
		img, err := h.wa.DownloadMedia(ctx, msg.Image.ID)
		if err != nil {
			return "", err
		}
		description, err := h.describer.Describe(ctx, img, msg.Image.Caption)
		if err != nil {
			return "", err
		}
		if msg.Image.Caption != "" {
			return fmt.Sprintf("%s\n[Image attached: %s]", msg.Image.Caption, description), nil
		}
		return fmt.Sprintf("[Image attached: %s]", description), nil

	default:
		return "", nil
	}
}

// deliver sends the turn result back in its chosen modality, falling
// back to text when media upload fails.
func (h *WebhookHandler) deliver(ctx context.Context, to string, result *graph.Result) error {
	switch result.Workflow {
	case types.WorkflowAudio:
		if len(result.Audio) > 0 {
			mediaID, err := h.wa.UploadMedia(ctx, result.Audio, "audio/mpeg", "reply.mp3")
			if err == nil {
				return h.wa.SendAudio(ctx, to, mediaID)
			}
			errutil.Handle(ctx, err, "audio upload failed, falling back to text")
		}

	case types.WorkflowImage:
		if len(result.Image) > 0 {
			mediaID, err := h.wa.UploadMedia(ctx, result.Image, "image/png", "scene.png")
			if err == nil {
				return h.wa.SendImage(ctx, to, mediaID, result.Reply)
			}
			errutil.Handle(ctx, err, "image upload failed, falling back to text")
		}
	}

	return h.wa.SendText(ctx, to, result.Reply)
}
