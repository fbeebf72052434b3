package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestLocalEngineProcess(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "preamble [VOICE OUTPUT]turn the lights on[/VOICE OUTPUT]"}},
			},
		})
	}))
	defer llmServer.Close()

	ttsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		if req["text"] != "turn the lights on" {
			t.Errorf("tts request text = %v, want %q", req["text"], "turn the lights on")
		}
		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer ttsServer.Close()

	engine := NewLocalEngine(nil, llmServer.URL, "", "", "system prompt", "ws://"+strings.TrimPrefix(ttsServer.URL, "http://"), "", "v1", nil)

	var chunks []AudioChunk
	response, err := engine.Process(context.Background(), "turn on the lights", nil, func(c AudioChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if response != "preamble [VOICE OUTPUT]turn the lights on[/VOICE OUTPUT]" {
		t.Errorf("response = %q", response)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].SampleRate != localTTSSampleRate || chunks[0].Channels != localTTSChannels || chunks[0].Width != localTTSWidth {
		t.Errorf("chunk format = %+v", chunks[0])
	}
}

func TestLocalEngineProcessKeepsResponseWhenTTSFails(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "[VOICE OUTPUT]it's raining[/VOICE OUTPUT]"}},
			},
		})
	}))
	defer llmServer.Close()

	// No TTS server listening at this address: streamSynthesize's dial fails.
	engine := NewLocalEngine(nil, llmServer.URL, "", "", "system prompt", "ws://127.0.0.1:1", "", "v1", nil)

	response, err := engine.Process(context.Background(), "what's the weather", nil, func(AudioChunk) error { return nil })
	if err != nil {
		t.Fatalf("Process: %v, want nil (TTS failure must not discard the llm response)", err)
	}
	if response != "[VOICE OUTPUT]it's raining[/VOICE OUTPUT]" {
		t.Errorf("response = %q, want the llm response preserved", response)
	}
}

func TestLocalEngineLLMErrorWrapsErrLLMFailed(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer llmServer.Close()

	engine := NewLocalEngine(nil, llmServer.URL, "", "", "system", "ws://127.0.0.1:1", "", "v1", nil)
	_, err := engine.Process(context.Background(), "hi", nil, func(AudioChunk) error { return nil })
	if err == nil {
		t.Fatal("expected error")
	}
}
