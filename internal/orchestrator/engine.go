package orchestrator

import (
	"context"
	"regexp"
	"strings"
)

// Engine is the one-method abstraction over the dialog backend (§4.4):
// given the new user text and prior history, produce a response,
// streaming synthesized audio chunks to onAudioChunk as they arrive.
type Engine interface {
	Process(ctx context.Context, text string, history []Turn, onAudioChunk func(AudioChunk) error) (response string, err error)
}

// voiceOutputTags extracts [VOICE OUTPUT]...[/VOICE OUTPUT] spans,
// case-insensitive and spanning newlines, per §4.4's Local engine.
var voiceOutputTags = regexp.MustCompile(`(?is)\[voice output\](.*?)\[/voice output\]`)

// extractVoiceText implements the Local engine's marker extraction: join
// every matched span with a space; if none match, use the full trimmed
// response.
func extractVoiceText(response string) string {
	matches := voiceOutputTags.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(response)
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = strings.TrimSpace(m[1])
	}
	return strings.Join(parts, " ")
}
