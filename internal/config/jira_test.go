package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleConfig() JiraConfig {
	return JiraConfig{
		Email:           "alice@example.com",
		APIKey:          "secret",
		BaseURL:         "https://example.atlassian.net",
		SprintStartWord: "Sprint ",
		Boards: []Board{
			{ID: "1", Key: "ALPHA", Name: "Alpha board", Enabled: true},
			{ID: "2", Key: "BETA", Name: "Beta board", Enabled: true},
			{ID: "3", Key: "GAMMA", Name: "Gamma board", Enabled: false},
		},
	}
}

func TestExportWithoutConfirmOmitsCredentials(t *testing.T) {
	data, err := Export(sampleConfig(), false)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "email") || strings.Contains(s, "apiKey") || strings.Contains(s, "secret") {
		t.Errorf("Export(confirm=false) leaked credentials: %s", s)
	}
	if !strings.Contains(s, `"baseURL":"https://example.atlassian.net"`) {
		t.Errorf("Export() missing baseURL: %s", s)
	}
}

func TestExportOmitsEmptyStringsKeepsBoards(t *testing.T) {
	data, err := Export(JiraConfig{BaseURL: "https://x"}, true)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if string(data) != `{"baseURL":"https://x","boards":[]}` {
		t.Errorf("Export() = %s", data)
	}

	imported, err := Import(data)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	again, _ := Export(imported, true)
	if string(again) != string(data) {
		t.Errorf("empty board list did not round trip: %s", again)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	first, err := Export(sampleConfig(), false)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	imported, err := Import(first)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if imported.Email != "" || imported.APIKey != "" {
		t.Errorf("Import() should not invent credentials: %+v", imported)
	}

	second, err := Export(imported, true)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("round trip mismatch:\n first: %s\nsecond: %s", first, second)
	}
}

func TestImportWithCredentials(t *testing.T) {
	data, _ := Export(sampleConfig(), true)
	got, err := Import(data)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if diff := cmp.Diff(sampleConfig(), got); diff != "" {
		t.Errorf("Import() mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRejectsDuplicateBoards(t *testing.T) {
	_, err := Import([]byte(`{"boards":[{"id":"1","key":"A"},{"id":"1","key":"B"}]}`))
	if !errors.Is(err, ErrDuplicateBoard) {
		t.Errorf("Import() error = %v, want ErrDuplicateBoard", err)
	}
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	if _, err := Import([]byte(`{"boards":`)); err == nil {
		t.Error("Import() should fail on malformed JSON")
	}
}

func TestMissing(t *testing.T) {
	if got := sampleConfig().Missing(); len(got) != 0 {
		t.Errorf("Missing() = %v, want none", got)
	}
	got := JiraConfig{Email: "a@b"}.Missing()
	if diff := cmp.Diff([]string{"baseURL", "apiKey"}, got); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveBoardIsPure(t *testing.T) {
	cfg := sampleConfig()
	original := cfg.Clone()

	moved, err := MoveBoard(cfg.Boards, 0, 2)
	if err != nil {
		t.Fatalf("MoveBoard() error: %v", err)
	}

	gotKeys := JiraConfig{Boards: moved}.BoardKeys()
	if diff := cmp.Diff([]string{"BETA", "GAMMA", "ALPHA"}, gotKeys); diff != "" {
		t.Errorf("MoveBoard() order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original, cfg); diff != "" {
		t.Errorf("MoveBoard() mutated its input (-want +got):\n%s", diff)
	}

	back, _ := MoveBoard(moved, 2, 0)
	if diff := cmp.Diff(original.Boards, back); diff != "" {
		t.Errorf("MoveBoard() inverse mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveBoardOutOfRange(t *testing.T) {
	if _, err := MoveBoard(sampleConfig().Boards, 0, 3); err == nil {
		t.Error("MoveBoard() should reject out-of-range destination")
	}
	if _, err := MoveBoard(sampleConfig().Boards, -1, 0); err == nil {
		t.Error("MoveBoard() should reject negative source")
	}
}

func TestRemoveBoardIsPure(t *testing.T) {
	cfg := sampleConfig()
	out, err := RemoveBoard(cfg.Boards, 1)
	if err != nil {
		t.Fatalf("RemoveBoard() error: %v", err)
	}
	if diff := cmp.Diff([]string{"ALPHA", "GAMMA"}, JiraConfig{Boards: out}.BoardKeys()); diff != "" {
		t.Errorf("RemoveBoard() mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Boards) != 3 || cfg.Boards[1].Key != "BETA" {
		t.Errorf("RemoveBoard() mutated its input: %+v", cfg.Boards)
	}
}

func TestRenameAndToggleBoard(t *testing.T) {
	cfg := sampleConfig()
	renamed, err := RenameBoard(cfg.Boards, 0, "First")
	if err != nil {
		t.Fatalf("RenameBoard() error: %v", err)
	}
	if renamed[0].Name != "First" || cfg.Boards[0].Name != "Alpha board" {
		t.Errorf("RenameBoard() = %+v, input = %+v", renamed[0], cfg.Boards[0])
	}

	toggled, err := SetBoardEnabled(cfg.Boards, "3", true)
	if err != nil {
		t.Fatalf("SetBoardEnabled() error: %v", err)
	}
	if !toggled[2].Enabled || cfg.Boards[2].Enabled {
		t.Errorf("SetBoardEnabled() = %+v, input = %+v", toggled[2], cfg.Boards[2])
	}
	if len(JiraConfig{Boards: toggled}.EnabledBoards()) != 3 {
		t.Error("EnabledBoards() should include the re-enabled board")
	}

	if _, err := SetBoardEnabled(cfg.Boards, "404", true); err == nil {
		t.Error("SetBoardEnabled() should fail for unknown id")
	}
}

func TestSetAndWithEnv(t *testing.T) {
	cfg, err := JiraConfig{}.Set("sprintStartWord", "Sprint ")
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if cfg.SprintStartWord != "Sprint " {
		t.Errorf("Set() SprintStartWord = %q", cfg.SprintStartWord)
	}
	if _, err := cfg.Set("boards", "x"); err == nil {
		t.Error("Set() should reject unknown keys")
	}

	over := sampleConfig().WithEnv(EnvOverrides{APIKey: "env"})
	if over.APIKey != "env" || over.Email != "alice@example.com" {
		t.Errorf("WithEnv() = %+v", over)
	}
}
