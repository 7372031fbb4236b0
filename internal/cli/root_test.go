package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stemma", cmd.Use)
	assert.Contains(t, cmd.Long, "provenance")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"project", "create"},
		{"project", "list"},
		{"project", "info"},
		{"project", "tsne"},
		{"model", "import"},
		{"source", "add"},
		{"source", "rescan"},
		{"source", "watch"},
		{"import-set"},
		{"log"},
		{"generate"},
		{"export"},
		{"update"},
		{"update-batch"},
		{"remove"},
		{"graph"},
		{"check"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	projectFlag := cmd.PersistentFlags().Lookup("project")
	require.NotNil(t, projectFlag)
	assert.Equal(t, "p", projectFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestGraphCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	graphCmd, _, err := cmd.Find([]string{"graph"})
	require.NoError(t, err)

	modeFlag := graphCmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "full", modeFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, nil, "--format", "yaml", "project", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestProjectDir(t *testing.T) {
	opts := &RootOptions{}
	opts.Config.ProjectsDir = "/data/projects"

	assert.Equal(t, "/data/projects/drums", opts.projectDir("drums"))
	assert.Equal(t, "/tmp/x", opts.projectDir("/tmp/x"))
	assert.Equal(t, "work/x", opts.projectDir("./work/x"))
}
