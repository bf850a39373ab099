package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/epimorphics/dclib-sub000/internal/template"
)

// LoadMode controls how errors are handled during template loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// templateExts are the file extensions read from template directories.
var templateExts = map[string]bool{".json": true, ".cue": true}

// FindTemplateFiles expands paths into template files. A file is taken as
// is; a directory contributes its .json and .cue files, sorted, without
// descending into subdirectories.
func FindTemplateFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("template path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read template directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && templateExts[filepath.Ext(e.Name())] {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no template files found in %s", p)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates given (use --template)")
	}
	return files, nil
}

// LoadTemplates loads every template file under paths into one loader.
// With LoadModeFailFast the first error is returned alone; with
// LoadModeCollectAll loading continues with the next file and every error
// is returned. The loader is nil only if no file could be found.
func LoadTemplates(paths []string, logger *slog.Logger, mode LoadMode) (*template.Loader, []error) {
	files, err := FindTemplateFiles(paths)
	if err != nil {
		return nil, []error{err}
	}

	loader := template.NewLoader(template.WithLogger(logger))
	var errs []error
	for _, f := range files {
		logger.Debug("loading template", "file", f)
		if err := loader.LoadFile(f); err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return loader, errs
			}
		}
	}
	return loader, errs
}
