package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"docharvest/pkg/domain"
)

// Runner is the external browser-automation collaborator. It is opaque: the
// service only cares whether the run completed within budget and what landed
// in outputDir afterwards.
type Runner interface {
	Run(ctx context.Context, targetURL string, outputDir string) error
}

// CommandRunner executes a configured command per run. The process is killed
// when ctx is cancelled, so the orchestrator's timeout is the single outer
// bound on a run.
type CommandRunner struct {
	argv   []string
	logger *slog.Logger
}

func NewCommandRunner(argv []string, logger *slog.Logger) (*CommandRunner, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("agent command is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRunner{argv: argv, logger: logger}, nil
}

func (r *CommandRunner) Run(ctx context.Context, targetURL string, outputDir string) error {
	args := expandArgs(r.argv[1:], targetURL, outputDir)
	cmd := exec.CommandContext(ctx, r.argv[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Info("running extraction agent", "command", r.argv[0], "url", targetURL, "dir", outputDir)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.KindAgentFailure, "agent run timed out", ctx.Err())
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = err.Error()
	}
	return domain.WrapError(domain.KindAgentFailure, "agent run failed", fmt.Errorf("%s", msg))
}

// expandArgs substitutes {url} and {dir} placeholders. When the command names
// neither placeholder, the URL and output directory are appended as the last
// two arguments.
func expandArgs(args []string, targetURL, outputDir string) []string {
	out := make([]string, 0, len(args)+2)
	substituted := false
	for _, a := range args {
		if strings.Contains(a, "{url}") || strings.Contains(a, "{dir}") {
			substituted = true
		}
		a = strings.ReplaceAll(a, "{url}", targetURL)
		a = strings.ReplaceAll(a, "{dir}", outputDir)
		out = append(out, a)
	}
	if !substituted {
		out = append(out, targetURL, outputDir)
	}
	return out
}
