// ABOUTME: E-book format conversion through Calibre's ebook-convert binary
// ABOUTME: Implements library.Converter for non-EPUB books and Kindle delivery

package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultEbookConvert is looked up on PATH when no binary is configured.
const DefaultEbookConvert = "ebook-convert"

// EbookConvert runs ebook-convert as a subprocess.
type EbookConvert struct {
	path   string
	logger *slog.Logger
}

// NewEbookConvert creates a converter using the binary at path, or
// DefaultEbookConvert from PATH when path is empty.
func NewEbookConvert(path string, logger *slog.Logger) *EbookConvert {
	if path == "" {
		path = DefaultEbookConvert
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EbookConvert{path: path, logger: logger.With("component", "convert")}
}

// Convert writes src converted to targetExt into dstDir and returns the new path.
func (c *EbookConvert) Convert(ctx context.Context, src, dstDir, targetExt string) (string, error) {
	targetExt = strings.TrimPrefix(strings.ToLower(targetExt), ".")
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	dst := filepath.Join(dstDir, base+"."+targetExt)
	if dst == src {
		return "", fmt.Errorf("source is already %s", targetExt)
	}

	c.logger.Debug("converting book", "src", src, "format", targetExt)

	cmd := exec.CommandContext(ctx, c.path, src, dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return "", fmt.Errorf("ebook-convert failed: %w: %s", err, msg)
	}
	return dst, nil
}
