// Package ncdump runs the netCDF ncdump utility to describe and dump granules.
package ncdump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/couchcryptid/granule-extract/internal/domain"
)

// DefaultPath is where distribution packages install ncdump.
const DefaultPath = "/usr/bin/ncdump"

// maxStderr bounds how much of the tool's stderr is kept in error messages.
const maxStderr = 512

// Client implements pipeline.DumpToolClient by invoking ncdump. Every
// invocation is bounded by the client timeout.
type Client struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client for the ncdump executable at path. A timeout of 0
// leaves invocations bounded only by the caller's context.
func New(path string, timeout time.Duration, logger *slog.Logger) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{path: path, timeout: timeout, logger: logger}
}

// Check verifies that the executable can be found.
func (c *Client) Check() error {
	if _, err := exec.LookPath(c.path); err != nil {
		return fmt.Errorf("ncdump not usable at %s: %w", c.path, err)
	}
	return nil
}

// DescribeHeader returns the NcML header of the granule (ncdump -h -x).
func (c *Client) DescribeHeader(ctx context.Context, path string) ([]byte, error) {
	return c.run(ctx, path, "-h", "-x", path)
}

// ExtractRaw returns the CDL dump of one variable (ncdump -v name).
func (c *Client) ExtractRaw(ctx context.Context, path, name string) ([]byte, error) {
	return c.run(ctx, name, "-v", name, path)
}

func (c *Client) run(ctx context.Context, subject string, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug("ncdump finished",
		"args", strings.Join(args, " "),
		"bytes", stdout.Len(),
		"duration", time.Since(start).String(),
	)

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, &domain.ExtractionIOError{
				Name:   subject,
				Reason: fmt.Sprintf("ncdump timed out after %s", c.timeout),
				Err:    ctx.Err(),
			}
		case ctx.Err() != nil:
			return nil, &domain.ExtractionIOError{Name: subject, Reason: "ncdump cancelled", Err: ctx.Err()}
		}
		reason := "ncdump failed"
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			if len(msg) > maxStderr {
				msg = msg[:maxStderr]
			}
			reason += ": " + msg
		}
		return nil, &domain.ExtractionIOError{Name: subject, Reason: reason, Err: err}
	}
	return stdout.Bytes(), nil
}
