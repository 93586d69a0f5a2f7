package upstream

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/conf"
)

func run(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUpstreamCommand(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Display.StateFile = filepath.Join(t.TempDir(), "config.json")

	out, err := run(t, settings, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No base URL configured")

	out, err = run(t, settings, "set", "birdnetpi.local/")
	require.NoError(t, err)
	assert.Contains(t, out, "http://birdnetpi.local (config version 1)")

	out, err = run(t, settings, "show")
	require.NoError(t, err)
	assert.Equal(t, "http://birdnetpi.local (config version 1)\n", out)
}

func TestUpstreamCommand_RejectsBlankURL(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Display.StateFile = filepath.Join(t.TempDir(), "config.json")

	_, err := run(t, settings, "set", "  ")
	require.Error(t, err)
	assert.NoFileExists(t, settings.Display.StateFile)
}
