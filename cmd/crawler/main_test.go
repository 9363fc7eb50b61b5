package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/internal/export"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		output   string
		fallback export.Format
		want     export.Format
		wantErr  bool
	}{
		{"explicit wins", "xlsx", "out.json", export.FormatJSON, export.FormatXLSX, false},
		{"from extension", "", "dir/out.html", export.FormatJSON, export.FormatHTML, false},
		{"unknown extension", "", "out.txt", export.FormatJSON, export.FormatJSON, false},
		{"stdout", "", "", export.FormatHTML, export.FormatHTML, false},
		{"bad explicit", "csv", "", export.FormatJSON, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFormat(tt.format, tt.output, tt.fallback)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunRender(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"date":"01/03/2024","document_id":"7","summary":"Contrato de serviços","doc_type":"CONTRATO"}]`), 0o644))

	var stdout bytes.Buffer
	require.NoError(t, runRender(input, "", "", &stdout))
	assert.Contains(t, stdout.String(), "<!DOCTYPE html>")
	assert.Contains(t, stdout.String(), `<div class="card contrato">`)

	out := filepath.Join(dir, "nested", "records.xlsx")
	require.NoError(t, runRender(input, "", out, &stdout))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, runRender(filepath.Join(dir, "missing.json"), "", "", &stdout))
}
