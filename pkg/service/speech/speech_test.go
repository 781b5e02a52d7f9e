package speech_test

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/himeno-lab/kotori/pkg/service/speech"
	"github.com/m-mizutani/gt"
)

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("sends text and returns the audio", func(t *testing.T) {
		var gotPath, gotKey string
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("xi-api-key")
			gt.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte("mp3-bytes"))
		}))
		defer srv.Close()

		s, err := speech.NewSynthesizer("xi-key",
			speech.WithSynthesisBaseURL(srv.URL),
			speech.WithVoiceID("voice-1"),
		)
		gt.NoError(t, err).Required()

		audio, err := s.Synthesize(ctx, "hello there")
		gt.NoError(t, err).Required()
		gt.Value(t, string(audio)).Equal("mp3-bytes")
		gt.Value(t, gotPath).Equal("/text-to-speech/voice-1")
		gt.Value(t, gotKey).Equal("xi-key")
		gt.Value(t, gotBody["text"]).Equal("hello there")
		gt.String(t, gotBody["model_id"]).NotEqual("")
	})

	t.Run("API error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		s, err := speech.NewSynthesizer("xi-key", speech.WithSynthesisBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		_, err = s.Synthesize(ctx, "hello")
		gt.Error(t, err)
	})

	t.Run("empty text is rejected without a request", func(t *testing.T) {
		s, err := speech.NewSynthesizer("xi-key", speech.WithSynthesisBaseURL("http://127.0.0.1:0"))
		gt.NoError(t, err).Required()

		_, err = s.Synthesize(ctx, "")
		gt.Error(t, err)
	})

	t.Run("oversized text is rejected without a request", func(t *testing.T) {
		s, err := speech.NewSynthesizer("xi-key", speech.WithSynthesisBaseURL("http://127.0.0.1:0"))
		gt.NoError(t, err).Required()

		_, err = s.Synthesize(ctx, strings.Repeat("a", 5001))
		gt.Error(t, err)
	})

	t.Run("missing API key is rejected", func(t *testing.T) {
		_, err := speech.NewSynthesizer("")
		gt.Error(t, err)
	})
}

func TestTranscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads audio and returns the text", func(t *testing.T) {
		var gotAuth, gotFile, gotModel string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			gt.NoError(t, err).Required()
			gt.Value(t, mediaType).Equal("multipart/form-data")

			gt.NoError(t, r.ParseMultipartForm(1<<20)).Required()
			gotModel = r.FormValue("model")
			f, _, err := r.FormFile("file")
			gt.NoError(t, err).Required()
			data, err := io.ReadAll(f)
			gt.NoError(t, err).Required()
			gotFile = string(data)

			_ = json.NewEncoder(w).Encode(map[string]string{"text": "good morning kotori"})
		}))
		defer srv.Close()

		tr, err := speech.NewTranscriber("groq-key", speech.WithTranscriptionBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		text, err := tr.Transcribe(ctx, []byte("ogg-data"))
		gt.NoError(t, err).Required()
		gt.Value(t, text).Equal("good morning kotori")
		gt.Value(t, gotAuth).Equal("Bearer groq-key")
		gt.Value(t, gotFile).Equal("ogg-data")
		gt.String(t, gotModel).NotEqual("")
	})

	t.Run("empty transcription is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"text": ""})
		}))
		defer srv.Close()

		tr, err := speech.NewTranscriber("groq-key", speech.WithTranscriptionBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		_, err = tr.Transcribe(ctx, []byte("ogg-data"))
		gt.Error(t, err)
	})

	t.Run("empty audio is rejected", func(t *testing.T) {
		tr, err := speech.NewTranscriber("groq-key")
		gt.NoError(t, err).Required()

		_, err = tr.Transcribe(ctx, nil)
		gt.Error(t, err)
	})
}
