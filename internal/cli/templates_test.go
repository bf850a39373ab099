package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/template"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFindTemplateFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.cue", "notes.txt", "data.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	files, err := FindTemplateFiles([]string{dir, officesTemplate})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.json"),
		officesTemplate,
	}, files)
}

func TestFindTemplateFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		wantErr string
	}{
		{"no paths", nil, "no templates given"},
		{"missing", []string{"testdata/none.json"}, "template path testdata/none.json"},
		{"empty directory", []string{t.TempDir()}, "no template files found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindTemplateFiles(tt.paths)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTemplates_Modes(t *testing.T) {
	paths := []string{"testdata/broken", "testdata/templates"}

	loader, errs := LoadTemplates(paths, quiet, LoadModeFailFast)
	require.NotNil(t, loader)
	require.Len(t, errs, 1)
	assert.True(t, template.IsLoadError(errs[0]))
	assert.Empty(t, loader.Registry().Roots(), "fail fast stops before the second document")

	loader, errs = LoadTemplates(paths, quiet, LoadModeCollectAll)
	require.NotNil(t, loader)
	require.Len(t, errs, 1)
	assert.Len(t, loader.Registry().Roots(), 1)
	assert.Len(t, loader.Sources(), 2)
}

func TestLoadTemplates_NotFound(t *testing.T) {
	loader, errs := LoadTemplates([]string{"testdata/none"}, quiet, LoadModeCollectAll)
	assert.Nil(t, loader)
	require.Len(t, errs, 1)
}
