// Package weights resolves and caches pose model weight files, downloading
// them on first use.
package weights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultModel is the pose model fetched when nothing else is configured.
const DefaultModel = "yolov8n-pose.onnx"

// KnownURLs maps weight file names to their release download URLs.
var KnownURLs = map[string]string{
	"yolov8n-pose.onnx": "https://github.com/ultralytics/assets/releases/download/v8.3.0/yolov8n-pose.onnx",
	"yolov8s-pose.onnx": "https://github.com/ultralytics/assets/releases/download/v8.3.0/yolov8s-pose.onnx",
}

// Resolver materializes weight files into a local cache directory.
type Resolver struct {
	cacheDir string
	client   *http.Client
	log      *logrus.Logger
}

func NewResolver(cacheDir string, log *logrus.Logger) (*Resolver, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create weights cache: %w", err)
	}
	return &Resolver{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		log:      log,
	}, nil
}

// Resolve returns a local path for the named weights, in priority order:
// already cached, stray copy in the working directory (moved into the
// cache), otherwise downloaded from the known-URL table.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	target := filepath.Join(r.cacheDir, filepath.Base(name))

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		stray := filepath.Join(cwd, filepath.Base(name))
		if info, err := os.Stat(stray); err == nil && !info.IsDir() && stray != target {
			if err := moveFile(stray, target); err == nil {
				r.log.WithFields(logrus.Fields{"component": "weights", "file": name}).
					Info("moved weights from working directory into cache")
				return target, nil
			}
		}
	}

	url, ok := KnownURLs[filepath.Base(name)]
	if !ok {
		return "", fmt.Errorf("no download source for weights %q", name)
	}

	r.log.WithFields(logrus.Fields{"component": "weights", "file": name, "url": url}).
		Info("downloading model weights")
	if err := r.download(ctx, url, target); err != nil {
		return "", err
	}
	return target, nil
}

// download fetches the URL into a temp file and renames it into place so a
// partial download never masquerades as valid weights.
func (r *Resolver) download(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build weights request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download weights: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download weights: unexpected status %s", resp.Status)
	}

	tmp := target + "." + uuid.New().String() + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to save weights: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close weights file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize weights: %w", err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
