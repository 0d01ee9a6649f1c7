package orchestrator

import (
	"bufio"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kilnworks/autodev/internal/provider"
)

// TestMockAgentBinary_EmitsParsableEvents builds cmd/mock-agent and execs
// it through OSLauncher exactly the way provider.ClaudeLike.BuildArgs
// invokes a real provider CLI, proving the fixture speaks the wire
// protocol ClaudeLike.ParseLine consumes end to end rather than merely
// matching it by inspection (spec §4.1 step 4, §4.3).
func TestMockAgentBinary_EmitsParsableEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a binary; skipped in short mode")
	}

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not determine test file path")
	}
	moduleRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	binPath := filepath.Join(t.TempDir(), "mock-agent")
	build := exec.Command("go", "build", "-o", binPath, "./cmd/mock-agent")
	build.Dir = moduleRoot
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("building mock-agent: %v\n%s", err, out)
	}

	adapter := provider.NewClaudeLike("claude", "Claude", binPath, "mock-default")
	args := adapter.BuildArgs(provider.SessionContext{Prompt: "hello"})

	var launcher OSLauncher
	proc, err := launcher.Launch(t.TempDir(), binPath, args, nil)
	if err != nil {
		t.Fatalf("launching mock-agent: %v", err)
	}

	var sawText, sawResult bool
	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if adapter.IsNoiseLine(line) {
			continue
		}
		ev := adapter.ParseLine(line)
		switch ev.Kind {
		case provider.EventText:
			sawText = true
		case provider.EventSystem:
			if ev.Content == "session result received" {
				sawResult = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading mock-agent stdout: %v", err)
	}

	if _, err := proc.Wait(); err != nil {
		t.Fatalf("mock-agent exited with error: %v", err)
	}
	if !sawText {
		t.Error("expected at least one parsed text event from mock-agent")
	}
	if !sawResult {
		t.Error("expected a parsed result event from mock-agent")
	}
}
