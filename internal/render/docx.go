package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// htmlToDOCX pipes the page through pandoc and reads the docx from stdout.
func htmlToDOCX(ctx context.Context, html string) ([]byte, error) {
	bin, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--from=html", "--to=docx", "--output=-")
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("pandoc: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("pandoc produced no output")
	}
	return stdout.Bytes(), nil
}
