package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tosone/minimp3"
)

// cloudChunkBytes is the fixed chunk size the Cloud engine feeds to
// on_audio_chunk, per §4.4.
const cloudChunkBytes = 4096

// CloudEngine POSTs the turn to a hosted speech API that returns a
// complete audio/mpeg response, decodes it, and chunks the PCM to the
// callback, per §4.4's "Cloud" engine.
type CloudEngine struct {
	logger     Logger
	url        string
	apiKey     string
	voiceID    string
	tenantID   string
	httpClient *http.Client
}

func NewCloudEngine(logger Logger, url, apiKey, voiceID, tenantID string, httpClient *http.Client) *CloudEngine {
	if logger == nil {
		logger = NoOpLogger{}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CloudEngine{logger: logger, url: url, apiKey: apiKey, voiceID: voiceID, tenantID: tenantID, httpClient: httpClient}
}

func (e *CloudEngine) Process(ctx context.Context, text string, history []Turn, onAudioChunk func(AudioChunk) error) (string, error) {
	mp3Data, err := e.requestAudio(ctx, text)
	if err != nil {
		e.logger.Error("cloud engine: request failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}

	dec, done, err := minimp3.Decode(io.NopCloser(bytes.NewReader(mp3Data)))
	if err != nil {
		e.logger.Error("cloud engine: mp3 decode failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrTTSFailed, err)
	}
	<-done

	pcm, err := io.ReadAll(dec)
	if err != nil {
		e.logger.Error("cloud engine: pcm read failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrTTSFailed, err)
	}

	for off := 0; off < len(pcm); off += cloudChunkBytes {
		end := off + cloudChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := AudioChunk{
			Data:       pcm[off:end],
			SampleRate: dec.SampleRate,
			Channels:   dec.Channels,
			Width:      2,
		}
		if err := onAudioChunk(chunk); err != nil {
			return "", err
		}
	}

	return text, nil
}

func (e *CloudEngine) requestAudio(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]interface{}{
		"query":   text,
		"voiceId": e.voiceID,
	}
	if e.tenantID != "" {
		payload["tenantId"] = e.tenantID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloud tts error (status %d)", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
