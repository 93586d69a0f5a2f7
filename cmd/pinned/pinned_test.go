package pinned

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-display/internal/conf"
)

func run(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePins(t *testing.T, path string, until time.Time) {
	t.Helper()
	data := fmt.Sprintf(`{"Osprey": {"pinned_until": %q, "dismissed": false}}`, until.UTC().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestPinnedCommand(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Display.PinnedFile = filepath.Join(t.TempDir(), "pinned_species.json")

	out, err := run(t, settings, "list")
	require.NoError(t, err)
	assert.Equal(t, "No pinned species\n", out)

	writePins(t, settings.Display.PinnedFile, time.Now().Add(23*time.Hour+30*time.Minute))

	out, err = run(t, settings, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Osprey\tuntil ")
	assert.Contains(t, out, "\t23h left\n")
	assert.NotContains(t, out, "%!")

	_, err = run(t, settings, "dismiss", "Dodo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dodo not found in pinned list")

	out, err = run(t, settings, "dismiss", "Osprey")
	require.NoError(t, err)
	assert.Equal(t, "Osprey dismissed\n", out)

	out, err = run(t, settings, "list")
	require.NoError(t, err)
	assert.Equal(t, "No pinned species\n", out)
}

func TestPinnedCommand_DismissAll(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Display.PinnedFile = filepath.Join(t.TempDir(), "pinned_species.json")
	writePins(t, settings.Display.PinnedFile, time.Now().Add(5*time.Hour))

	out, err := run(t, settings, "dismiss-all")
	require.NoError(t, err)
	assert.Equal(t, "All pinned species dismissed\n", out)

	out, err = run(t, settings, "list")
	require.NoError(t, err)
	assert.Equal(t, "No pinned species\n", out)
}
