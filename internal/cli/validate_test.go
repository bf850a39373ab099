package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validateJSON runs validate with JSON output and decodes the response.
func validateJSON(t *testing.T, args ...string) (ValidationResult, *CLIError, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), "output: %s", buf.String())
	return resp.Data, resp.Error, err
}

func TestValidateValidTemplates(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"testdata/templates"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ 1 template(s), 2 source(s) valid")
}

func TestValidateValidTemplatesJSON(t *testing.T) {
	result, cliErr, err := validateJSON(t, officesTemplate)
	require.NoError(t, err)
	assert.Nil(t, cliErr)

	assert.True(t, result.Valid)
	assert.Equal(t, []TemplateInfo{{Kind: "mapping", Root: true}}, result.Templates)
	assert.Equal(t, []string{"countries", "regions"}, result.Sources)
	assert.Empty(t, result.Errors)
}

func TestValidateParseError(t *testing.T) {
	result, cliErr, err := validateJSON(t, "testdata/templates", "testdata/broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	require.NotNil(t, cliErr)
	assert.Equal(t, CodeValidate, cliErr.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "PARSE", result.Errors[0].Code)
	// The other document still loads.
	assert.Len(t, result.Templates, 1)
}

func TestValidateCycleIsWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"testdata/cycle"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "warning: reference cycle")
	assert.Contains(t, buf.String(), "✓ 2 template(s)")
}

func TestValidateUnresolvedReference(t *testing.T) {
	result, _, err := validateJSON(t, "testdata/dangling")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "UNRESOLVED_REF", result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, `unknown template "nowhere"`)
}

func TestValidateNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), CodeNotFound)
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template files found")
}

func TestValidationIssue_String(t *testing.T) {
	tests := []struct {
		issue ValidationIssue
		want  string
	}{
		{ValidationIssue{Code: "PARSE", Message: "unexpected EOF"}, "PARSE: unexpected EOF"},
		{ValidationIssue{Code: "SHAPE", Field: "@id", Message: "must be a string", File: "a.json", Line: 2, Column: 9}, "a.json:2:9: SHAPE: @id: must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.issue.String())
		})
	}
}
