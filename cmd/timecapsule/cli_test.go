package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hpungsan/timecapsule/internal/config"
	"github.com/hpungsan/timecapsule/internal/errors"
	"github.com/hpungsan/timecapsule/internal/logger"
	"github.com/hpungsan/timecapsule/internal/manager"
	"github.com/hpungsan/timecapsule/internal/ops"
)

var base = time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC)

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) Open(u string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, u)
}

func (o *recordingOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

// setupTestEnv returns an environment on a fake clock with UTC schedules
// and a temp exports dir.
func setupTestEnv(t *testing.T) (*appEnv, *clockwork.FakeClock, *recordingOpener) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.ExportsDir = t.TempDir()

	clock := clockwork.NewFakeClockAt(base)
	opener := &recordingOpener{}
	return &appEnv{cfg: cfg, clock: clock, log: logger.Discard(), opener: opener}, clock, opener
}

// runCLI runs the app with args and stdin, returning what it printed.
func runCLI(ctx context.Context, env *appEnv, stdin string, args ...string) (string, error) {
	app := newCLIApp(env)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	err := app.RunContext(ctx, append([]string{"timecapsule"}, args...))
	return out.String(), err
}

func alexFlags(date, clock string) []string {
	return []string{
		"--name=Alex",
		"--phone=+1 (234) 567-8900",
		"--message=Happy Birthday!",
		"--date=" + date,
		"--time=" + clock,
	}
}

// TestCLIExport tests the export command.
func TestCLIExport(t *testing.T) {
	env, _, _ := setupTestEnv(t)

	out, err := runCLI(context.Background(), env, "", append([]string{"export"}, alexFlags("2025-06-01", "09:30")...)...)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	var output ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	wantPath := filepath.Join(env.cfg.ExportsDir, "TimeCapsule_Alex_1747749600000.txt")
	if output.Path != wantPath {
		t.Errorf("path = %s, want %s", output.Path, wantPath)
	}
	if output.ExportedAt != base.UnixMilli() {
		t.Errorf("exported_at = %d, want %d", output.ExportedAt, base.UnixMilli())
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	want := "Name: Alex\nPhone: +1 (234) 567-8900\nMessage: Happy Birthday!\nDate: 2025-06-01\nTime: 09:30"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
	if output.Bytes != len(want) {
		t.Errorf("bytes = %d, want %d", output.Bytes, len(want))
	}
}

// TestCLIExport_MessageFromStdin tests --message=- reading the message from stdin.
func TestCLIExport_MessageFromStdin(t *testing.T) {
	env, _, _ := setupTestEnv(t)
	path := filepath.Join(env.cfg.ExportsDir, "note.txt")

	_, err := runCLI(context.Background(), env, "Line one\nLine two\n",
		"export", "--name=Alex", "--phone=123", "--message=-", "--date=2025-06-01", "--time=09:30", "--path="+path)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if !strings.Contains(string(data), "Message: Line one\nLine two\nDate:") {
		t.Errorf("message not written literally: %q", data)
	}
}

// TestCLICountdown tests the countdown command.
func TestCLICountdown(t *testing.T) {
	env, _, _ := setupTestEnv(t)

	tests := []struct {
		name      string
		args      []string
		wantText  string
		wantReady bool
	}{
		{
			name:     "clock now",
			args:     []string{"--date=2025-05-21", "--time=15:30"},
			wantText: "1d 1h 30m",
		},
		{
			name:     "explicit now",
			args:     []string{"--date=2025-05-21", "--time=15:30", "--now=2025-05-21T15:00:00Z"},
			wantText: "0d 0h 30m",
		},
		{
			name:      "target passed",
			args:      []string{"--date=2025-05-20", "--time=13:59"},
			wantText:  "Ready to send!",
			wantReady: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(context.Background(), env, "", append([]string{"countdown"}, tt.args...)...)
			if err != nil {
				t.Fatalf("countdown command failed: %v", err)
			}

			var output map[string]any
			if err := json.Unmarshal([]byte(out), &output); err != nil {
				t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
			}
			if output["text"] != tt.wantText {
				t.Errorf("text = %v, want %s", output["text"], tt.wantText)
			}
			if output["ready"] != tt.wantReady {
				t.Errorf("ready = %v, want %v", output["ready"], tt.wantReady)
			}
		})
	}
}

// TestCLILink tests the link preview command.
func TestCLILink(t *testing.T) {
	env, _, _ := setupTestEnv(t)

	t.Run("created defaults to today", func(t *testing.T) {
		out, err := runCLI(context.Background(), env, "", "link", "--name=Alex", "--phone=+1 (234) 567-8900", "--message=Happy Birthday!")
		if err != nil {
			t.Fatalf("link command failed: %v", err)
		}

		var output map[string]string
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if !strings.HasPrefix(output["url"], "https://wa.me/12345678900?text=") {
			t.Errorf("url = %s", output["url"])
		}
		if !strings.Contains(output["text"], "This message was written on May 20, 2025.") {
			t.Errorf("text = %q", output["text"])
		}
		if strings.Contains(output["url"], "+") {
			t.Errorf("spaces must be encoded as %%20, got %s", output["url"])
		}
	})

	t.Run("explicit created date", func(t *testing.T) {
		out, err := runCLI(context.Background(), env, "", "link", "--name=Alex", "--phone=123", "--message=Hi", "--created=2024-12-25")
		if err != nil {
			t.Fatalf("link command failed: %v", err)
		}
		if !strings.Contains(out, "December 25, 2024") {
			t.Errorf("output missing created date: %s", out)
		}
	})
}

// TestCLISchedule_AlreadyDue tests that a past schedule dispatches at once.
func TestCLISchedule_AlreadyDue(t *testing.T) {
	env, _, opener := setupTestEnv(t)

	out, err := runCLI(context.Background(), env, "", append([]string{"schedule", "--open"}, alexFlags("2025-05-20", "13:00")...)...)
	if err != nil {
		t.Fatalf("schedule command failed: %v", err)
	}

	var output manager.DispatchOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Recipient != "Alex" {
		t.Errorf("recipient = %s, want Alex", output.Recipient)
	}
	if output.DueAt == nil || !output.DueAt.Equal(base) {
		t.Errorf("due_at = %v, want %v", output.DueAt, base)
	}

	opened := opener.Opened()
	if len(opened) != 1 || opened[0] != output.URL {
		t.Errorf("opened = %v, want [%s]", opened, output.URL)
	}
}

// TestCLISchedule_WaitsUntilDue tests that schedule blocks until the clock
// reaches the target and does not open anything without --open.
func TestCLISchedule_WaitsUntilDue(t *testing.T) {
	env, clock, opener := setupTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			return
		}
		clock.Advance(5 * time.Minute)
	}()

	out, err := runCLI(ctx, env, "", append([]string{"schedule"}, alexFlags("2025-05-20", "14:05")...)...)
	if err != nil {
		t.Fatalf("schedule command failed: %v", err)
	}

	var output manager.DispatchOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if !strings.HasPrefix(output.URL, "https://wa.me/12345678900?text=") {
		t.Errorf("url = %s", output.URL)
	}
	if got := opener.Opened(); len(got) != 0 {
		t.Errorf("opener called without --open: %v", got)
	}
}

// TestCLISchedule_Cancelled tests that cancelling while waiting reports CANCELLED.
func TestCLISchedule_Cancelled(t *testing.T) {
	env, clock, _ := setupTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer waitCancel()
		_ = clock.BlockUntilContext(waitCtx, 1)
		cancel()
	}()

	_, err := runCLI(ctx, env, "", append([]string{"schedule"}, alexFlags("2025-06-01", "09:30")...)...)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "[CANCELLED]") {
		t.Errorf("error = %v, want CANCELLED", err)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	env, _, opener := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{
			name:     "export missing fields",
			args:     []string{"export", "--name=Alex"},
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "export outside exports dir",
			args:     append([]string{"export", "--path=" + filepath.Join(t.TempDir(), "x.txt")}, alexFlags("2025-06-01", "09:30")...),
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "countdown bad date",
			args:     []string{"countdown", "--date=June 1st", "--time=09:30"},
			wantCode: "INVALID_SCHEDULE",
		},
		{
			name:     "countdown bad now",
			args:     []string{"countdown", "--date=2025-06-01", "--time=09:30", "--now=soon"},
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "link missing message",
			args:     []string{"link", "--name=Alex", "--phone=123"},
			wantCode: "VALIDATION_FAILED",
		},
		{
			name:     "link phone without digits",
			args:     []string{"link", "--name=Alex", "--phone=none", "--message=Hi"},
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "schedule bad time",
			args:     append([]string{"schedule", "--open"}, alexFlags("2025-06-01", "9.30pm")...),
			wantCode: "INVALID_SCHEDULE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// cli.Exit carries the formatted message; nothing is printed
			_, err := runCLI(ctx, env, "", tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), "["+tt.wantCode+"]") {
				t.Errorf("error = %q, want [%s] prefix", err.Error(), tt.wantCode)
			}
		})
	}

	if got := opener.Opened(); len(got) != 0 {
		t.Errorf("failed commands opened links: %v", got)
	}
}

func TestOutputError(t *testing.T) {
	t.Run("wrapped capsule error keeps code", func(t *testing.T) {
		err := outputError(fmt.Errorf("dispatch: %w", errors.NewNotDue("01ABC")))
		if !strings.HasPrefix(err.Error(), "[NOT_DUE] ") {
			t.Errorf("error = %q", err.Error())
		}
	})

	t.Run("plain error passes through", func(t *testing.T) {
		err := outputError(fmt.Errorf("boom"))
		if err.Error() != "boom" {
			t.Errorf("error = %q, want boom", err.Error())
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"timecapsule"}, expected: false},
		{name: "export command", args: []string{"timecapsule", "export"}, expected: true},
		{name: "serve command", args: []string{"timecapsule", "serve"}, expected: true},
		{name: "schedule command", args: []string{"timecapsule", "schedule"}, expected: true},
		{name: "help flag", args: []string{"timecapsule", "--help"}, expected: true},
		{name: "short version flag", args: []string{"timecapsule", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"timecapsule", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"timecapsule"}, expected: false},
		{name: "help flag", args: []string{"timecapsule", "--help"}, expected: true},
		{name: "short help flag", args: []string{"timecapsule", "-h"}, expected: true},
		{name: "version flag", args: []string{"timecapsule", "--version"}, expected: true},
		{name: "help subcommand", args: []string{"timecapsule", "help"}, expected: true},
		{name: "export command is not help", args: []string{"timecapsule", "export"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		result, err := readStdin(strings.NewReader("  small content\n"), 1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		_, err := readStdin(strings.NewReader(strings.Repeat("x", 100)), 50)
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("expected INVALID_REQUEST for content exceeding limit, got %v", err)
		}
	})
}
