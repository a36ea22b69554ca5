package cmd_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clicmd "github.com/angelospk/animatch/cmd/cli/cmd"
	"github.com/angelospk/animatch/internal/server"
)

// executeCommand runs the root command with args and captures output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	outBuf := bytes.NewBufferString("")
	clicmd.RootCmd.SetOut(outBuf)
	clicmd.RootCmd.SetErr(outBuf)
	clicmd.RootCmd.SetArgs(args)

	err := clicmd.RootCmd.Execute()
	clicmd.RootCmd.SetArgs([]string{})
	return outBuf.String(), err
}

func TestRecognizeCommandRequiresFilename(t *testing.T) {
	_, err := executeCommand(t, "recognize")
	assert.Error(t, err)
}

func TestRecognizeCommandOffline(t *testing.T) {
	out, err := executeCommand(t, "recognize", "Mononoke.Hime.1997.1080p.BluRay.x264.mkv")
	require.NoError(t, err)

	assert.Contains(t, out, "电影")
	assert.Contains(t, out, "Mononoke Hime")
	assert.Contains(t, out, "1997")
}

func TestRecognizeCommandJSONOutput(t *testing.T) {
	out, err := executeCommand(t, "recognize", "--json", "[ANi] Sousou no Frieren - E07 [1080P].mp4")
	require.NoError(t, err)

	var result server.RecognizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Contains(t, result.Title, "Frieren")
	assert.Equal(t, 7.0, result.Record.Episode)
	assert.Equal(t, "1080P", result.Record.Resolution)
	assert.Equal(t, "ANi", result.Record.ReleaseGroup)
}

func TestServeCommandRegistered(t *testing.T) {
	cmds := clicmd.RootCmd.Commands()
	var names []string
	for _, c := range cmds {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "recognize")
}
