package gmx

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRunLogsOutput(t *testing.T) {
	r := &Runner{Bin: "echo", Log: log.New(io.Discard)}
	logfile := filepath.Join(t.TempDir(), "run.log")

	if err := r.Run(context.Background(), nil, logfile, "hello", "world"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logfile)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "$ echo hello world") {
		t.Errorf("log missing command header:\n%s", content)
	}
	if !strings.Contains(content, "hello world") {
		t.Errorf("log missing command output:\n%s", content)
	}
}

func TestRunStdin(t *testing.T) {
	r := &Runner{Bin: "cat", Log: log.New(io.Discard)}
	logfile := filepath.Join(t.TempDir(), "run.log")

	if err := r.Run(context.Background(), []byte("selection\n"), logfile); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logfile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "selection") {
		t.Errorf("stdin not passed through:\n%s", data)
	}
}

func TestRunFailure(t *testing.T) {
	r := &Runner{Bin: "false", Log: log.New(io.Discard)}
	err := r.Run(context.Background(), nil, "", "anything")
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "false anything") {
		t.Errorf("error should name the command: %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := &Runner{Bin: "definitely-not-a-binary-xyz", Log: log.New(io.Discard)}
	if err := r.Run(context.Background(), nil, "", "version"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
