package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/LiboWorks/bitrag/internal/logging"
)

// Indexer defaults.
const (
	DefaultMaxFileSize int64 = 1 << 20
	DefaultChunkLines        = 40
)

// skipDirs are dependency and build directories never worth indexing.
var skipDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, "venv": true, "target": true,
	"dist": true, "build": true, "vendor": true, "testdata": true,
}

// skipSuffixes mark generated files.
var skipSuffixes = []string{".min.js", ".bundle.js", ".lock", ".pb.go"}

// IndexOptions controls which files are indexed and how they are cut.
type IndexOptions struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// Include keeps only files whose name or relative path matches one of
	// these globs. Empty keeps every file with a known language.
	Include []string
	// Exclude drops files and directories matching any of these globs.
	Exclude []string
	// MaxFileSize skips larger files; 0 selects DefaultMaxFileSize.
	MaxFileSize int64
	// ChunkLines is the window for files without recognizable symbols; 0
	// selects DefaultChunkLines.
	ChunkLines int
	UserID     string
	Logger     logging.Logger
}

// DefaultIndexOptions indexes recursively with the default limits.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{Recursive: true, MaxFileSize: DefaultMaxFileSize, ChunkLines: DefaultChunkLines}
}

// IndexStats summarizes an indexing run.
type IndexStats struct {
	Files      int
	Skipped    int
	Failed     int
	Chunks     int
	Lines      int
	ByKind     map[string]int
	ByLanguage map[Language]int
}

func (s *IndexStats) add(chunks []Chunk) {
	s.Files++
	for _, c := range chunks {
		s.Chunks++
		s.Lines += c.Lines()
		s.ByKind[c.Kind]++
		s.ByLanguage[c.Language]++
	}
}

// CollectFiles expands paths into the sorted list of files to index. File
// arguments are kept when their language is known and the globs allow
// them; directories are walked.
func CollectFiles(paths []string, opts IndexOptions) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	keep := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", root, err)
		}
		if !info.IsDir() {
			if wanted(root, filepath.Base(root), opts) {
				keep(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = d.Name()
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path == root {
					return nil
				}
				if !opts.Recursive || skipDir(d.Name()) || matchAny(opts.Exclude, d.Name(), rel) {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && wanted(path, rel, opts) {
				keep(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

func wanted(path, rel string, opts IndexOptions) bool {
	name := filepath.Base(path)
	if DetectLanguage(name) == "" {
		return false
	}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	if matchAny(opts.Exclude, name, rel) {
		return false
	}
	return len(opts.Include) == 0 || matchAny(opts.Include, name, rel)
}

// matchAny matches each glob against the base name and the slash-separated
// relative path.
func matchAny(globs []string, name, rel string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
		if ok, _ := filepath.Match(g, rel); ok {
			return true
		}
	}
	return false
}

var errTooLarge = errors.New("file exceeds size limit")

// ChunkFile reads path and cuts it into chunks. Files over the size limit
// return errTooLarge.
func ChunkFile(path string, opts IndexOptions) ([]Chunk, error) {
	limit := opts.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes", errTooLarge, path, info.Size())
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ChunkSource(filepath.ToSlash(path), src, DetectLanguage(path), opts.ChunkLines), nil
}

// IndexPaths chunks every file under paths, embeds the chunks and stores
// them. Unreadable and oversized files are logged and counted; embedding
// or store failures abort the run.
func IndexPaths(ctx context.Context, store Store, emb Embedder, paths []string, opts IndexOptions) (IndexStats, error) {
	log := logging.OrDiscard(opts.Logger).With("component", "indexer")
	stats := IndexStats{ByKind: map[string]int{}, ByLanguage: map[Language]int{}}

	files, err := CollectFiles(paths, opts)
	if err != nil {
		return stats, err
	}
	log.Info("indexing", "files", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		chunks, err := ChunkFile(path, opts)
		switch {
		case errors.Is(err, errTooLarge):
			log.Warn("skipping large file", "path", path)
			stats.Skipped++
			continue
		case err != nil:
			log.Warn("failed to read file", "path", path, "error", err)
			stats.Failed++
			continue
		}

		docs := make([]Document, len(chunks))
		for i, c := range chunks {
			docs[i] = c.Document()
			docs[i].UserID = opts.UserID
		}
		if _, err := Ingest(ctx, store, emb, docs); err != nil {
			return stats, fmt.Errorf("index %s: %w", path, err)
		}
		stats.add(chunks)
		log.Debug("indexed file", "path", path, "chunks", len(chunks))
	}

	log.Info("indexing done", "files", stats.Files, "chunks", stats.Chunks, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func chunkID(c Chunk) string {
	key := fmt.Sprintf("%s#%d-%d#%s", c.Path, c.StartLine, c.EndLine, c.DisplayName())
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
