package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vvharness", cmd.Use)
	assert.Contains(t, cmd.Long, "VOICEVOX CORE")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "exec-case", "list", "snapshot", "normalize", "history"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestExecCaseIsHidden(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"exec-case"})
	require.NoError(t, err)
	assert.True(t, sub.Hidden)
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

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"suite", "lib", "platform", "parallel", "fail-fast", "timeout", "record", "db"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "j", runCmd.Flags().Lookup("parallel").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "list", "--format", "yaml")
	assert.Equal(t, ExitCommandError, res.code())
	assert.ErrorContains(t, res.err, `invalid format "yaml"`)
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "list", "--bogus")
	assert.Equal(t, ExitCommandError, res.code())
}

func TestInvalidConfiguration(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{"VV_PARALLEL=-2"}}, "", "snapshot", "--all")
	assert.Equal(t, ExitCommandError, res.code())
	assert.ErrorContains(t, res.err, "VV_PARALLEL must be >= 0")
}
