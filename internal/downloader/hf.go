// Package downloader fetches GGUF checkpoints from Hugging Face into a
// local model cache.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// MinModelSize is the size below which a cached file is treated as a
// partial or failed download.
const MinModelSize = 100_000_000

// ErrChecksum is returned when a downloaded file does not match the
// catalogue digest.
var ErrChecksum = errors.New("checksum mismatch")

// Cache is a directory of downloaded models laid out as <dir>/<id>/<file>.
type Cache struct {
	Dir string
	// MinSize overrides MinModelSize when positive.
	MinSize int64
	Logger  logging.Logger
}

// DefaultDir returns $BITRAG_MODELS_DIR or the per-user cache directory.
func DefaultDir() string {
	if dir := os.Getenv("BITRAG_MODELS_DIR"); dir != "" {
		return dir
	}
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "bitrag", "models")
	}
	return "models"
}

// NewCache opens a cache rooted at dir, or DefaultDir when dir is empty.
func NewCache(dir string, logger logging.Logger) *Cache {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Cache{Dir: dir, Logger: logging.OrDiscard(logger)}
}

func (c *Cache) log() logging.Logger { return logging.OrDiscard(c.Logger) }

func (c *Cache) minSize() int64 {
	if c.MinSize > 0 {
		return c.MinSize
	}
	return MinModelSize
}

// ModelPath is where m lives once downloaded.
func (c *Cache) ModelPath(m Model) string {
	return filepath.Join(c.Dir, m.ID, m.Filename)
}

// IsDownloaded reports whether a complete copy of m is present.
func (c *Cache) IsDownloaded(m Model) bool {
	info, err := os.Stat(c.ModelPath(m))
	return err == nil && info.Mode().IsRegular() && info.Size() > c.minSize()
}

// Downloaded lists the catalogue entries present in the cache.
func (c *Cache) Downloaded() []Model {
	var out []Model
	for _, m := range catalogue {
		if c.IsDownloaded(m) {
			out = append(out, m)
		}
	}
	return out
}

// Resolve returns the local path for name, which may be a catalogue id,
// an alias, or a path to an existing file.
func (c *Cache) Resolve(name string) (string, error) {
	if name == "" {
		name = DefaultModelID
	}
	if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
		return name, nil
	}
	m, err := Lookup(name)
	if err != nil {
		return "", &inference.ModelLoadError{Path: name, Err: err}
	}
	if !c.IsDownloaded(m) {
		return "", &inference.ModelLoadError{
			Path: c.ModelPath(m),
			Err:  fmt.Errorf("model %s is not downloaded, run: bitrag model download %s", m.ID, m.ID),
		}
	}
	return c.ModelPath(m), nil
}

// Delete removes a downloaded model and its directory.
func (c *Cache) Delete(m Model) error {
	dir := filepath.Join(c.Dir, m.ID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("model %s is not downloaded", m.ID)
		}
		return err
	}
	c.log().Info("deleting model", "model", m.ID, "dir", dir)
	return os.RemoveAll(dir)
}

// TotalSize sums the size of every regular file under the cache.
func (c *Cache) TotalSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.Dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Entries lists the model directories found in the cache, including
// ones that are not in the catalogue.
func (c *Cache) Entries() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ProgressFunc receives the number of bytes written so far and the
// expected total, which is -1 when the server does not say.
type ProgressFunc func(done, total int64)

// DownloadOptions controls a single download.
type DownloadOptions struct {
	// Force re-downloads even when a complete copy exists.
	Force bool
	// Verify checks the SHA-256 digest when the catalogue has one.
	Verify bool
	// Token is sent as a bearer token. Defaults to $HUGGINGFACE_TOKEN.
	Token  string
	Client *http.Client
	// URL overrides the catalogue URL.
	URL      string
	Progress ProgressFunc
}

// Download fetches m into the cache and returns its path. The body is
// written to a temporary file next to the target and renamed into place
// once complete.
func (c *Cache) Download(ctx context.Context, m Model, opts DownloadOptions) (string, error) {
	log := c.log().With("model", m.ID)
	outPath := c.ModelPath(m)
	if !opts.Force && c.IsDownloaded(m) {
		log.Info("model already downloaded", "path", outPath)
		return outPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", ioError("create model dir", err)
	}

	url := opts.URL
	if url == "" {
		url = m.URL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	token := opts.Token
	if token == "" {
		token = os.Getenv("HUGGINGFACE_TOKEN")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	log.Info("downloading model", "url", url, "size", HumanSize(m.Size))
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", m.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	tmpPath := outPath + ".download"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", ioError("create "+tmpPath, err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	hasher := sha256.New()
	var dst io.Writer = io.MultiWriter(f, hasher)
	if opts.Progress != nil {
		dst = &progressWriter{w: dst, total: resp.ContentLength, fn: opts.Progress}
	}
	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		cleanup()
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", inference.ErrInterrupted, ctx.Err())
		}
		return "", fmt.Errorf("download %s: %w", m.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", ioError("close "+tmpPath, err)
	}

	if opts.Verify && m.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, m.SHA256) {
			os.Remove(tmpPath)
			return "", fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksum, m.ID, m.SHA256, got)
		}
		log.Debug("checksum verified", "sha256", got)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", ioError("rename "+tmpPath, err)
	}
	log.Info("model downloaded", "path", outPath, "bytes", n)
	return outPath, nil
}

type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	p.fn(p.done, p.total)
	return n, err
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", inference.ErrIO, op, err)
}
