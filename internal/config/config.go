// Package config loads per-service configuration from environment
// variables, following the same getEnv/getEnvInt/... pattern used
// throughout this system's process entry points.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present, falling back silently to whatever is
// already in the process environment. Every cmd/*/main.go calls this once
// at startup before building its service Config.
func Load() {
	_ = godotenv.Load()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// Buttons configures cmd/buttons.
type Buttons struct {
	BusBindAddr string
	MockMode    bool
	HoldTime    time.Duration
}

func LoadButtons() *Buttons {
	return &Buttons{
		BusBindAddr: getEnv("BUTTONS_BUS_ADDR", ":5558"),
		MockMode:    getEnvBool("BUTTONS_MOCK", true),
		HoldTime:    getEnvDuration("BUTTONS_HOLD_TIME", 2*time.Second),
	}
}

// VoiceInput configures cmd/voiceinput.
type VoiceInput struct {
	SpeechRecAddr string
	MockWavPath   string
	MockMode      bool

	DeviceSampleRate   int
	DeviceChannels     int
	DeviceSampleWidth  int // bytes per sample on the capture device
	TargetSampleRate   int // VAD input rate, fixed at 16000 per spec
	TargetChannels     int // VAD input channels, fixed at 1 per spec
	ChunkFrames        int
	VADThreshold       float64
	VADMinConsecutive  int
	Hangover           time.Duration
	ReconnectTimeout   time.Duration
	ReconnectBackoff   time.Duration
	DropLogInterval    time.Duration
	QueueDepth         int
}

func LoadVoiceInput() *VoiceInput {
	return &VoiceInput{
		SpeechRecAddr:     getEnv("SPEECH_REC_AUDIO_ADDR", "127.0.0.1:5002"),
		MockWavPath:       getEnv("VOICE_INPUT_MOCK_WAV", ""),
		MockMode:          getEnvBool("VOICE_INPUT_MOCK", false),
		DeviceSampleRate:  getEnvInt("VOICE_INPUT_DEVICE_RATE", 44100),
		DeviceChannels:    getEnvInt("VOICE_INPUT_DEVICE_CHANNELS", 1),
		DeviceSampleWidth: getEnvInt("VOICE_INPUT_DEVICE_WIDTH", 2),
		TargetSampleRate:  16000,
		TargetChannels:    1,
		ChunkFrames:       getEnvInt("VOICE_INPUT_CHUNK_FRAMES", 1600),
		VADThreshold:      getEnvFloat("VOICE_INPUT_VAD_THRESHOLD", 0.02),
		VADMinConsecutive: getEnvInt("VOICE_INPUT_VAD_MIN_CONSECUTIVE", 2),
		Hangover:          getEnvDuration("VOICE_INPUT_HANGOVER", 500*time.Millisecond),
		ReconnectTimeout:  getEnvDuration("VOICE_INPUT_RECONNECT_TIMEOUT", 5*time.Second),
		ReconnectBackoff:  getEnvDuration("VOICE_INPUT_RECONNECT_BACKOFF", 2*time.Second),
		DropLogInterval:   getEnvDuration("VOICE_INPUT_DROP_LOG_INTERVAL", 5*time.Second),
		QueueDepth:        getEnvInt("VOICE_INPUT_QUEUE_DEPTH", 100),
	}
}

// SpeechRec configures cmd/speechrec.
type SpeechRec struct {
	ControlAddr string
	AudioAddr   string
	TextAddr    string

	ExpectedSampleRate int
	ExpectedChannels   int

	WorkerJoinTimeout time.Duration
	TickInterval      time.Duration

	GroqAPIKey string
	GroqModel  string
}

func LoadSpeechRec() *SpeechRec {
	return &SpeechRec{
		ControlAddr:        getEnv("SPEECH_REC_CONTROL_ADDR", ":5001"),
		AudioAddr:          getEnv("SPEECH_REC_AUDIO_ADDR", ":5002"),
		TextAddr:           getEnv("SPEECH_REC_TEXT_ADDR", ":5003"),
		ExpectedSampleRate: 16000,
		ExpectedChannels:   1,
		WorkerJoinTimeout:  getEnvDuration("SPEECH_REC_WORKER_JOIN_TIMEOUT", 2*time.Second),
		TickInterval:       getEnvDuration("SPEECH_REC_TICK_INTERVAL", 100*time.Millisecond),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		GroqModel:          getEnv("GROQ_STT_MODEL", "whisper-large-v3-turbo"),
	}
}

// Orchestrator configures cmd/orchestrator.
type Orchestrator struct {
	SpeechRecControlAddr string
	SpeechRecTextAddr    string
	ButtonsBusAddr       string
	VoiceOutputBusAddr   string

	SessionTimeout  time.Duration
	SessionLogPath  string
	EngineKind      string // "local" or "cloud"

	LLMURL       string
	LLMAPIKey    string
	LLMModel     string
	SystemPrompt string

	TTSURL    string
	TTSAPIKey string
	VoiceID   string
	TenantID  string

	ReconnectBackoff time.Duration
	HTTPTimeout      time.Duration

	BusTargetSampleRate  int
	BusTargetChannels    int
	BusTargetSampleWidth int
}

func LoadOrchestrator() *Orchestrator {
	return &Orchestrator{
		SpeechRecControlAddr: getEnv("SPEECH_REC_CONTROL_ADDR", "127.0.0.1:5001"),
		SpeechRecTextAddr:    getEnv("SPEECH_REC_TEXT_ADDR", "127.0.0.1:5003"),
		ButtonsBusAddr:       getEnv("BUTTONS_BUS_ADDR", "127.0.0.1:5558"),
		VoiceOutputBusAddr:   getEnv("ORCHESTRATOR_BUS_ADDR", ":5557"),

		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 5*time.Second),
		SessionLogPath: getEnv("SESSION_LOG_PATH", "sessions.log"),
		EngineKind:     getEnv("ENGINE_KIND", "local"),

		LLMURL:       getEnv("LLM_URL", "http://127.0.0.1:8080/v1/chat/completions"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		SystemPrompt: getEnv("SYSTEM_PROMPT", "You are a helpful and concise voice assistant. Use short sentences suitable for speech."),

		TTSURL:    getEnv("TTS_URL", "ws://127.0.0.1:8081/tts/stream"),
		TTSAPIKey: os.Getenv("TTS_API_KEY"),
		VoiceID:   getEnv("TTS_VOICE_ID", "default"),
		TenantID:  os.Getenv("TTS_TENANT_ID"),

		ReconnectBackoff: getEnvDuration("ORCHESTRATOR_RECONNECT_BACKOFF", 2*time.Second),
		HTTPTimeout:      getEnvDuration("ORCHESTRATOR_HTTP_TIMEOUT", 30*time.Second),

		BusTargetSampleRate:  getEnvInt("BUS_TARGET_SAMPLE_RATE", 48000),
		BusTargetChannels:    getEnvInt("BUS_TARGET_CHANNELS", 2),
		BusTargetSampleWidth: getEnvInt("BUS_TARGET_SAMPLE_WIDTH", 4),
	}
}

// VoiceOutput configures cmd/voiceoutput.
type VoiceOutput struct {
	BusBindAddr string

	DeviceSampleRate  int
	DeviceChannels    int
	DeviceSampleWidth int

	// InputChannels is the channel count the Orchestrator publishes at.
	// A mismatch against DeviceChannels triggers inline reformatting.
	InputChannels int

	MockMode bool
}

func LoadVoiceOutput() *VoiceOutput {
	return &VoiceOutput{
		BusBindAddr:       getEnv("ORCHESTRATOR_BUS_ADDR", "127.0.0.1:5557"),
		DeviceSampleRate:  getEnvInt("VOICE_OUTPUT_DEVICE_RATE", 48000),
		DeviceChannels:    getEnvInt("VOICE_OUTPUT_DEVICE_CHANNELS", 2),
		DeviceSampleWidth: getEnvInt("VOICE_OUTPUT_DEVICE_WIDTH", 4),
		InputChannels:     getEnvInt("VOICE_OUTPUT_INPUT_CHANNELS", getEnvInt("BUS_TARGET_CHANNELS", 2)),
		MockMode:          getEnvBool("VOICE_OUTPUT_MOCK", false),
	}
}
