package speechrec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/resilience"
)

// GroqASR transcribes buffered samples over Groq's hosted Whisper
// endpoint, retrying transient network failures.
type GroqASR struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	logger     *slog.Logger
	client     *http.Client
	retry      resilience.RetryConfig
}

// NewGroqASR builds a GroqASR. sampleRate is the rate samples were
// captured at (the WAV header Groq expects); model defaults to
// "whisper-large-v3-turbo" when empty.
func NewGroqASR(apiKey, model string, sampleRate int, logger *slog.Logger) *GroqASR {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GroqASR{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: sampleRate,
		logger:     logger,
		client:     http.DefaultClient,
		retry:      resilience.DefaultRetryConfig(),
	}
}

func (s *GroqASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	pcm := float32ToPCM16(samples)
	wavData := audio.WavBytes(pcm, s.sampleRate, 1, 2)

	var text string
	err := resilience.Retry(ctx, s.retry, func() error {
		t, err := s.transcribeOnce(ctx, wavData)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *GroqASR) transcribeOnce(ctx context.Context, wavData []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

func float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := int32(v * 32768.0)
		if s > 32767 {
			s = 32767
		}
		if s < -32768 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
