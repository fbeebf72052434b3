package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// localTTSSampleRate/Channels/Width describe the reference TTS's wire
// format: 22050 Hz, mono, 16-bit (§4.4).
const (
	localTTSSampleRate = 22050
	localTTSChannels   = 1
	localTTSWidth      = 2
)

// LocalEngine calls a self-hosted LLM HTTP endpoint and a streaming TTS
// WebSocket, per §4.4's "Local" engine.
type LocalEngine struct {
	logger Logger

	llmURL       string
	llmAPIKey    string
	llmModel     string
	systemPrompt string
	httpClient   *http.Client

	ttsURL    string
	ttsAPIKey string
	voiceID   string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLocalEngine(logger Logger, llmURL, llmAPIKey, llmModel, systemPrompt, ttsURL, ttsAPIKey, voiceID string, httpClient *http.Client) *LocalEngine {
	if logger == nil {
		logger = NoOpLogger{}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LocalEngine{
		logger:       logger,
		llmURL:       llmURL,
		llmAPIKey:    llmAPIKey,
		llmModel:     llmModel,
		systemPrompt: systemPrompt,
		httpClient:   httpClient,
		ttsURL:       ttsURL,
		ttsAPIKey:    ttsAPIKey,
		voiceID:      voiceID,
	}
}

func (e *LocalEngine) Process(ctx context.Context, text string, history []Turn, onAudioChunk func(AudioChunk) error) (string, error) {
	messages := make([]Turn, 0, len(history)+2)
	messages = append(messages, Turn{Role: "system", Content: e.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Turn{Role: "user", Content: text})

	response, err := e.complete(ctx, messages)
	if err != nil {
		e.logger.Error("local engine: llm completion failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}

	voiceText := extractVoiceText(response)
	if err := e.streamSynthesize(ctx, voiceText, onAudioChunk); err != nil {
		e.logger.Error("local engine: tts streaming failed, keeping llm response in history", "error", err)
	}

	return response, nil
}

func (e *LocalEngine) complete(ctx context.Context, messages []Turn) (string, error) {
	payload := map[string]interface{}{
		"model":    e.llmModel,
		"messages": messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.llmURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.llmAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.llmAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Choices) > 0 && result.Choices[0].Message.Content != "" {
		return result.Choices[0].Message.Content, nil
	}
	if result.Message.Content != "" {
		return result.Message.Content, nil
	}
	return "", ErrEmptyResponse
}

func (e *LocalEngine) getConn(ctx context.Context) (*websocket.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return e.conn, nil
	}

	u, err := url.Parse(e.ttsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if e.ttsAPIKey != "" {
		q.Set("api_key", e.ttsAPIKey)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tts: %w", err)
	}
	e.conn = conn
	return conn, nil
}

func (e *LocalEngine) streamSynthesize(ctx context.Context, text string, onAudioChunk func(AudioChunk) error) error {
	conn, err := e.getConn(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req := map[string]interface{}{
		"text":  text,
		"voice": e.voiceID,
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		e.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			e.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from tts: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onAudioChunk(AudioChunk{
				Data:       payload,
				SampleRate: localTTSSampleRate,
				Channels:   localTTSChannels,
				Width:      localTTSWidth,
			}); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return fmt.Errorf("tts error: %s", msg)
			}
		}
	}
}

func (e *LocalEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		err := e.conn.Close(websocket.StatusNormalClosure, "")
		e.conn = nil
		return err
	}
	return nil
}
