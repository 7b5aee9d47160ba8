package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"phpls/pkg/extract"
	"phpls/pkg/ignore"
	"phpls/pkg/model"
	"phpls/pkg/phpparser"
)

// Scanner walks a workspace root for .php files and feeds their extracted
// symbols into an Index, following the worker-pool-over-a-file-list shape
// the multi-language file walker this package started from used, narrowed
// to PHP's single tree-sitter grammar.
type Scanner struct {
	ignoreMatcher *ignore.Matcher
}

// ScanStats reports what a workspace scan did.
type ScanStats struct {
	CandidateFiles int
	ParsedFiles    int
	Errors         []ScanError
}

// ScanError records one file that failed to read or parse during a scan.
type ScanError struct {
	Path string
	Err  error
}

// NewScanner creates a scanner that still prunes vendor/.git/node_modules
// and friends even before a workspace .gitignore is loaded via SetIgnore.
func NewScanner() *Scanner {
	return &Scanner{ignoreMatcher: ignore.ParseLines(nil)}
}

// SetIgnore configures the .gitignore-style matcher applied during the walk.
func (s *Scanner) SetIgnore(m *ignore.Matcher) {
	s.ignoreMatcher = m
}

// ScanWorkspace walks root for .php files, parses each, and populates idx
// with the extracted symbols. Returns per-file hashes so a caller (the
// snapshot store) can skip re-parsing unchanged files on a later scan.
func (s *Scanner) ScanWorkspace(ctx context.Context, root string, idx *Index) (ScanStats, map[string]string, error) {
	var stats ScanStats

	root, err := filepath.Abs(root)
	if err != nil {
		return stats, nil, err
	}
	root = filepath.Clean(root)

	candidates, err := s.collectCandidates(root)
	if err != nil {
		return stats, nil, err
	}
	stats.CandidateFiles = len(candidates)

	sort.Strings(candidates)
	results := s.parseFiles(ctx, candidates)

	hashes := make(map[string]string, len(results))
	for _, r := range results {
		uri := pathToURI(r.path)
		if r.err != nil {
			stats.Errors = append(stats.Errors, ScanError{Path: r.path, Err: r.err})
			continue
		}
		idx.UpdateFile(uri, r.fileSymbols)
		hashes[uri] = r.hash
		stats.ParsedFiles++
	}

	return stats, hashes, nil
}

type scanResult struct {
	path        string
	fileSymbols *model.FileSymbols
	hash        string
	err         error
}

func (s *Scanner) parseFiles(ctx context.Context, candidates []string) []scanResult {
	if len(candidates) == 0 {
		return nil
	}

	results := make([]scanResult, len(candidates))
	workers := scanWorkerCount(len(candidates))

	taskCh := make(chan int, len(candidates))
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range taskCh {
				path := candidates[i]
				results[i] = parseOne(ctx, path)
			}
		}()
	}
	for i := range candidates {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()
	return results
}

func parseOne(ctx context.Context, path string) scanResult {
	source, err := os.ReadFile(path)
	if err != nil {
		return scanResult{path: path, err: err}
	}

	doc, err := phpparser.NewDocument(ctx, source)
	if err != nil {
		return scanResult{path: path, err: err}
	}

	uri := pathToURI(path)
	symbols := extract.FileSymbols(doc.Tree(), source, uri)
	sum := sha256.Sum256(source)
	return scanResult{path: path, fileSymbols: symbols, hash: hex.EncodeToString(sum[:])}
}

func scanWorkerCount(taskCount int) int {
	if taskCount <= 0 {
		return 0
	}
	if raw := strings.TrimSpace(os.Getenv("PHPLS_INDEX_WORKERS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > taskCount {
				return taskCount
			}
			return parsed
		}
	}
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > taskCount {
		workers = taskCount
	}
	return workers
}

func (s *Scanner) collectCandidates(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if s.ignoreMatcher != nil && s.ignoreMatcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignoreMatcher != nil && s.ignoreMatcher.Match(rel, false) {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".php" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func pathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
