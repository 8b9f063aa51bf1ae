package tools

import (
	"context"
	"os/exec"

	"github.com/m4xw311/parley/errors"
)

// speakCommands are the supported text-to-speech utilities, tried in
// order.
var speakCommands = [][]string{
	{"say"},    // macOS
	{"espeak"}, // Linux
}

// VoiceAvailable reports whether a text-to-speech utility is installed.
func VoiceAvailable() bool {
	return findSpeaker() != ""
}

func findSpeaker() string {
	for _, c := range speakCommands {
		if _, err := exec.LookPath(c[0]); err == nil {
			return c[0]
		}
	}
	return ""
}

// SpeakTool reads text aloud through the OS text-to-speech utility.
// It is only offered to the model while voice mode is active.
type SpeakTool struct{}

func (t *SpeakTool) Name() string { return "speak" }
func (t *SpeakTool) Description() string {
	return "Speaks the given text aloud. Keep spoken responses short and conversational."
}
func (t *SpeakTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "The text to speak aloud.",
			},
		},
		"required": []string{"text"},
	}
}

func (t *SpeakTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	text, ok := stringArg(args, "text")
	if !ok {
		return "", errors.New("missing or invalid 'text' argument")
	}

	speaker := findSpeaker()
	if speaker == "" {
		return "", errors.New("no text-to-speech utility found (tried say, espeak)")
	}

	out, err := exec.CommandContext(ctx, speaker, text).CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed. Output:\n%s", speaker, string(out))
	}
	return "Spoken.", nil
}
