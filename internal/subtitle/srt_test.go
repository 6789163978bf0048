package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTimestamp(t *testing.T) {
	cases := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00,000"},
		{1234, "00:00:01,234"},
		{61000, "00:01:01,000"},
		{3723456, "01:02:03,456"},
	}

	for _, c := range cases {
		if got := Timestamp(c.ms); got != c.want {
			t.Errorf("Timestamp(%d) = %s, want %s", c.ms, got, c.want)
		}
	}
}

func TestRender(t *testing.T) {
	cues := []Cue{
		{StartMS: 0, EndMS: 1500, Text: "first line"},
		{StartMS: 1500, EndMS: 3000, Text: "second\nline"},
	}

	got := Render(cues)
	want := "1\n00:00:00,000 --> 00:00:01,500\nfirst line\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nsecond line"
	if got != want {
		t.Errorf("Render mismatch:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.srt")
	payload := `{"data":{"originalList":[{"bg":0,"ed":2000,"res":"hello"}]}}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RenderFile(path); err != nil {
		t.Fatalf("RenderFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "1\n00:00:00,000 --> 00:00:02,000\nhello") {
		t.Errorf("unexpected SRT content: %q", content)
	}
}

func TestRenderFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.srt")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RenderFile(path); err == nil {
		t.Error("expected error for malformed transcript")
	}
}
