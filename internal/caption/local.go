package caption

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// localStrategy shells out to a locally installed captioning model. The
// configured command is run with the image path as its final argument and the
// caption is read from stdout.
type localStrategy struct {
	command string
}

func (s *localStrategy) Name() string { return "local-model" }

func (s *localStrategy) Caption(ctx context.Context, path string) (string, error) {
	const op = "caption.local"

	parts := strings.Fields(s.command)
	if len(parts) == 0 {
		return "", fmt.Errorf("%s: no local model configured", op)
	}
	if _, err := exec.LookPath(parts[0]); err != nil {
		return "", fmt.Errorf("%s: local model unavailable: %v", op, err)
	}

	args := append(parts[1:], path)
	out, err := exec.CommandContext(ctx, parts[0], args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}

	caption := strings.TrimSpace(string(out))
	if caption == "" {
		return "", fmt.Errorf("%s: empty output", op)
	}
	return caption, nil
}
