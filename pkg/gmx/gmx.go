// Package gmx drives the gromacs binary. The energy pipeline reruns the
// trajectory through gmx grompp/mdrun/energy; everything else in the
// toolkit is computed in-process.
package gmx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// Runner invokes one gromacs installation.
type Runner struct {
	// Bin is the gromacs executable, "gmx" by default.
	Bin string
	Log *log.Logger
}

func (g *Runner) bin() string {
	if g.Bin != "" {
		return g.Bin
	}
	return "gmx"
}

func (g *Runner) logger() *log.Logger {
	if g.Log != nil {
		return g.Log
	}
	return log.Default()
}

// Run executes `gmx args...`, feeding stdin when non-nil and appending
// the combined output to logfile (gromacs writes its reports to stderr).
// A non-zero exit wraps the tail of the output.
func (g *Runner) Run(ctx context.Context, stdin []byte, logfile string, args ...string) error {
	g.logger().Debug("exec", "bin", g.bin(), "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, g.bin(), args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()

	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "$ %s %s\n", g.bin(), strings.Join(args, " "))
			f.Write(out.Bytes())
			f.Close()
		} else {
			g.logger().Warn("cannot write gmx log", "file", logfile, "err", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%s %s: %w: %s", g.bin(), args[0], runErr, tail(out.String(), 5))
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
