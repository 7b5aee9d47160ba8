// Package stubs loads the phpstorm-stubs corpus -- declaration-only PHP
// source for the engine and bundled extensions -- into the workspace index
// so hover, completion, and diagnostics work against builtin symbols like
// strlen() or PDO without the user's own code declaring them.
package stubs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"phpls/pkg/extract"
	"phpls/pkg/model"
	"phpls/pkg/phpparser"
)

// DefaultExtensions is the set of phpstorm-stubs top-level directories
// loaded unless the caller narrows the list: the engine plus the
// extensions commonly enabled in a default PHP build.
var DefaultExtensions = []string{
	"Core", "standard", "date", "json", "pcre", "SPL", "mbstring", "curl",
	"dom", "SimpleXML", "xml", "filter", "hash", "session", "tokenizer",
	"ctype", "fileinfo", "pdo", "Reflection", "intl", "openssl", "zlib",
	"bcmath", "gd", "iconv", "mysqli", "sodium", "exif",
}

// Indexer is the subset of the workspace index's write API the loader
// needs; pkg/index.Index satisfies it.
type Indexer interface {
	UpdateFile(uri string, fs *model.FileSymbols)
}

// Load parses every stub file under the named extensions in stubsPath and
// feeds the resulting symbols into index, marking each as builtin. It
// returns the number of files successfully loaded.
func Load(ctx context.Context, index Indexer, stubsPath string, extensions []string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	loaded := 0
	for _, ext := range extensions {
		dir := filepath.Join(stubsPath, ext)
		files, err := collectStubFiles(dir)
		if err != nil {
			logger.Warn("phpstub extension directory unreadable", "extension", ext, "dir", dir, "error", err)
			continue
		}
		for _, file := range files {
			if err := loadStubFile(ctx, index, ext, file); err != nil {
				logger.Debug("skipping unparseable stub file", "file", file, "error", err)
				continue
			}
			loaded++
		}
	}
	logger.Info("loaded phpstorm stubs", "files", loaded, "extensions", len(extensions))
	return loaded, nil
}

// collectStubFiles does a non-recursive scan of dir for *.php files,
// mirroring how phpstorm-stubs lays each extension out as a flat directory.
func collectStubFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".php") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func loadStubFile(ctx context.Context, index Indexer, ext, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := phpparser.NewDocument(ctx, source)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	uri := fmt.Sprintf("phpstub://%s/%s", ext, filepath.Base(path))
	fs := extract.FileSymbols(doc.Tree(), doc.Source(), uri)
	for i := range fs.Symbols {
		fs.Symbols[i].Modifiers.DefaultLibrary = true
	}
	index.UpdateFile(uri, fs)
	return nil
}
