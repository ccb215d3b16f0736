// Package loader reads the tutoring corpus from disk into index documents.
//
// The corpus root holds one directory per source kind (vocab, grammar,
// exercise, plus the aliases vocabulary and exercises). Files are parsed
// concurrently but results are always returned in path order, so rebuilding
// the same corpus twice yields the same document sequence.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many corpus files are parsed at once.
const DefaultConcurrency = 4

// kindDirs lists the directory names accepted for each kind, canonical first.
var kindDirs = map[domain.SourceKind][]string{
	domain.SourceVocabulary: {"vocab", "vocabulary"},
	domain.SourceGrammar:    {"grammar"},
	domain.SourceExercise:   {"exercise", "exercises"},
}

// parser turns one file into documents. stem is the file name without extension.
type parser func(path, stem string, data []byte) ([]domain.Document, error)

// CorpusLoader implements port.CorpusLoader for the on-disk corpus layout.
type CorpusLoader struct {
	concurrency int
}

// NewCorpusLoader creates a loader parsing up to concurrency files at once.
func NewCorpusLoader(concurrency int) *CorpusLoader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &CorpusLoader{concurrency: concurrency}
}

type corpusFile struct {
	path  string
	parse parser
}

// Load parses every recognised file under root. Files that fail to parse are
// logged and skipped; a missing kind directory is not an error.
func (l *CorpusLoader) Load(ctx context.Context, root string) ([]domain.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", root)
	}

	var files []corpusFile
	for _, kind := range domain.SourceKinds {
		found, err := kindFiles(root, kind)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	results := make([][]domain.Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := parseFile(f)
			if err != nil {
				slog.Warn("skipping corpus file", "path", f.path, "error", err)
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	docs := []domain.Document{}
	for _, r := range results {
		docs = append(docs, r...)
	}
	slog.Debug("corpus loaded", "root", root, "files", len(files), "documents", len(docs))
	return docs, nil
}

// Dirs returns the existing kind directories under root, for watchers.
func Dirs(root string) []string {
	var dirs []string
	for _, kind := range domain.SourceKinds {
		for _, name := range kindDirs[kind] {
			dir := filepath.Join(root, name)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Extensions lists every file extension the loader reads.
func Extensions() []string {
	return []string{".json", ".txt", ".md"}
}

func kindFiles(root string, kind domain.SourceKind) ([]corpusFile, error) {
	var files []corpusFile
	for _, name := range kindDirs[kind] {
		dir := filepath.Join(root, name)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == dir {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			if p := parserFor(kind, filepath.Ext(path)); p != nil {
				files = append(files, corpusFile{path: path, parse: p})
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func parserFor(kind domain.SourceKind, ext string) parser {
	ext = strings.ToLower(ext)
	switch kind {
	case domain.SourceVocabulary:
		if ext == ".json" {
			return parseVocabulary
		}
	case domain.SourceGrammar:
		switch ext {
		case ".json":
			return parseGrammarJSON
		case ".txt", ".md":
			return parseGrammarText
		}
	case domain.SourceExercise:
		if ext == ".json" {
			return parseExercises
		}
	}
	return nil
}

func parseFile(f corpusFile) ([]domain.Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(f.path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return f.parse(f.path, stem, data)
}
