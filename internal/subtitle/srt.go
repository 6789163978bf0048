// Package subtitle renders portal transcript cues into SRT files.
package subtitle

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cue is one transcript segment with millisecond timestamps.
type Cue struct {
	StartMS int    `json:"bg"`
	EndMS   int    `json:"ed"`
	Text    string `json:"res"`
}

// transcriptPayload matches the portal's transcript export document.
type transcriptPayload struct {
	Data struct {
		OriginalList []Cue `json:"originalList"`
	} `json:"data"`
}

// Timestamp formats milliseconds as an SRT timestamp (HH:MM:SS,mmm).
func Timestamp(ms int) string {
	hours := ms / 3600000
	ms %= 3600000
	minutes := ms / 60000
	ms %= 60000
	seconds := ms / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// Render converts cues to SRT. Newlines inside a cue collapse to spaces.
func Render(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		text := strings.TrimSpace(strings.ReplaceAll(cue.Text, "\n", " "))
		b.WriteString(fmt.Sprintf("%d\n%s --> %s\n%s\n\n", i+1, Timestamp(cue.StartMS), Timestamp(cue.EndMS), text))
	}
	return strings.TrimSpace(b.String())
}

// RenderFile converts a downloaded transcript JSON file to SRT in place.
func RenderFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}

	return os.WriteFile(path, []byte(Render(payload.Data.OriginalList)), 0644)
}
