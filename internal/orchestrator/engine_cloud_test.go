package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCloudEngineRequestAudioSendsExpectedPayload(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xff, 0xfb}) // not a full frame; Process is tested separately
	}))
	defer srv.Close()

	engine := NewCloudEngine(nil, srv.URL, "api-key", "voice-1", "tenant-1", nil)
	data, err := engine.requestAudio(context.Background(), "turn the lights on")
	if err != nil {
		t.Fatalf("requestAudio: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("got %d bytes, want 2", len(data))
	}
	if gotPayload["query"] != "turn the lights on" || gotPayload["voiceId"] != "voice-1" || gotPayload["tenantId"] != "tenant-1" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestCloudEngineRequestAudioOmitsEmptyTenantID(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte{0})
	}))
	defer srv.Close()

	engine := NewCloudEngine(nil, srv.URL, "", "voice-1", "", nil)
	if _, err := engine.requestAudio(context.Background(), "hi"); err != nil {
		t.Fatalf("requestAudio: %v", err)
	}
	if _, ok := gotPayload["tenantId"]; ok {
		t.Errorf("expected tenantId omitted, got %+v", gotPayload)
	}
}

func TestCloudEngineRequestAudioNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	engine := NewCloudEngine(nil, srv.URL, "", "voice-1", "", nil)
	if _, err := engine.requestAudio(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
