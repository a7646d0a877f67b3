package prompts

import (
	"strings"
	"testing"
)

func TestTypesListsAllBuiltins(t *testing.T) {
	infos := Types()
	if len(infos) != 5 {
		t.Fatalf("got %d prompt types, want 5", len(infos))
	}
	want := []string{"custom", "email", "summary", "training", "weekly"}
	for i, id := range want {
		if infos[i].ID != id {
			t.Errorf("infos[%d] = %q, want %q", i, infos[i].ID, id)
		}
		if infos[i].Name == "" || infos[i].Description == "" {
			t.Errorf("%s is missing its name or description", id)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, id := range []string{"summary", "email", "training", "weekly", "custom"} {
		if !Known(id) {
			t.Errorf("%s should be known", id)
		}
	}
	if Known("sonnet") {
		t.Error("unknown type accepted")
	}
}

func TestBuildEmbedsTranscription(t *testing.T) {
	transcript := "we agreed to ship on tuesday"
	for _, id := range []string{"summary", "email", "training", "weekly"} {
		system, user, err := Build(id, transcript, "")
		if err != nil {
			t.Fatalf("Build(%s) failed: %v", id, err)
		}
		if system == "" {
			t.Errorf("%s has no system prompt", id)
		}
		if !strings.Contains(user, transcript) {
			t.Errorf("%s user prompt does not embed the transcription", id)
		}
	}
}

func TestBuildCustom(t *testing.T) {
	_, user, err := Build("custom", "the transcript body", "List every decision made.")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(user, "List every decision made.") {
		t.Error("custom instruction missing from prompt")
	}
	if !strings.Contains(user, "the transcript body") {
		t.Error("transcription missing from custom prompt")
	}
	// The instruction leads, the transcript follows.
	if strings.Index(user, "List every decision made.") > strings.Index(user, "the transcript body") {
		t.Error("custom instruction should precede the transcript")
	}
}

func TestBuildUnknownType(t *testing.T) {
	if _, _, err := Build("haiku", "text", ""); err == nil {
		t.Fatal("expected error for unknown prompt type")
	}
}
