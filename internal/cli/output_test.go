package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/engine"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/uid"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"batch": "batch_dd_7_1"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E005", "node not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "node not found", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"node": "sample_1", "owner": "found_1"}
	err := formatter.Error("E003", "path collision", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "found_1", resp.Error.Details["owner"])
}

type greeting string

func (g greeting) RenderText(w io.Writer) { fmt.Fprintf(w, "hello %s\n", string(g)) }

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("plain value"))
	assert.Equal(t, "plain value\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success(greeting("drums")))
	assert.Equal(t, "hello drums\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E005", "node not found", map[string]string{"node": "x"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E005]")
	assert.Contains(t, buf.String(), "node not found")
	assert.NotContains(t, buf.String(), "node: x")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("E005", "node not found", map[string]string{"op": "remove", "node": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error [E005]: node not found\n  node: x\n  op: remove\n", buf.String())
}

func TestOutputFormatter_Progress(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.Progress("Scanning %s", "kick.wav")

			assert.Empty(t, buf.String(), "verbose output must not corrupt JSON")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Scanning kick.wav")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"not found", graph.NotFound("op", "x", "missing"), ErrCodeNotFound, ExitCommandError},
		{"validation", graph.Invalid("op", "x", "bad"), ErrCodeValidation, ExitCommandError},
		{"no project", &graph.Error{Code: graph.ErrCodeNoProject, Op: "open"}, ErrCodeNoProject, ExitCommandError},
		{"collision", &graph.Error{Code: graph.ErrCodePathCollision, Op: "add"}, ErrCodePathCollision, ExitCommandError},
		{"integrity", &graph.Error{Code: graph.ErrCodeIntegrity, Op: "open"}, ErrCodeIntegrity, ExitFailure},
		{"mismatch", fmt.Errorf("load: %w", &uid.MismatchError{Name: "dd"}), ErrCodeIdentityMismatch, ExitFailure},
		{"unsupported", engine.ErrGenerationUnsupported, ErrCodeUnsupported, ExitCommandError},
		{"canceled", context.Canceled, ErrCodeCanceled, ExitFailure},
		{"other", io.ErrUnexpectedEOF, ErrCodeGeneric, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", io.EOF)))
	assert.Equal(t, ExitFailure, GetExitCode(io.EOF))
}

func TestErrorDetails(t *testing.T) {
	assert.Nil(t, errorDetails(io.EOF))
	assert.Equal(t, map[string]string{"op": "remove element", "node": "x"},
		errorDetails(fmt.Errorf("wrapped: %w", graph.NotFound("remove element", "x", "node not found"))))

	d := errorDetails(&uid.MismatchError{
		Name:     "dd",
		Stored:   uid.Identity{UID: "aa", Type: uid.TypeXXH3_64},
		Computed: uid.Identity{UID: "bb", Type: uid.TypeXXH3_64},
	})
	assert.Equal(t, "dd", d["model"])
	assert.Equal(t, "aa", d["stored"])
	assert.Equal(t, "bb", d["computed"])
}
