package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSplitCmdFromStdin(t *testing.T) {
	out, err := execute(t, strings.Repeat("a", 25), "split", "--size", "10", "--overlap", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[chunk_0] 0-10")
	assert.Contains(t, out, "[chunk_2] 16-25")
	assert.Contains(t, out, "3 chunks")
}

func TestSplitCmdRejectsOverlap(t *testing.T) {
	_, err := execute(t, "text", "split", "--size", "10", "--overlap", "10")
	require.Error(t, err)
}

func TestRepairCmdPresentation(t *testing.T) {
	raw := "Here you go:\n```json\n{\"title\": \"Deck\", \"content\": \"# A\\n---\\n# B\",}\n```"
	out, err := execute(t, raw, "repair", "--shape", "presentation")
	require.NoError(t, err)

	var got struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Deck", got.Title)
	assert.Equal(t, "# A\n\n---\n\n# B", got.Content)
}

func TestRepairCmdImages(t *testing.T) {
	out, err := execute(t, `[{prompt: "a sun", description: "Sun"}]`, "repair", "--shape", "images")
	require.NoError(t, err)
	assert.Contains(t, out, `"prompt": "a sun"`)

	_, err = execute(t, "no json here", "repair", "--shape", "images")
	require.Error(t, err)

	_, err = execute(t, "x", "repair", "--shape", "table")
	require.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"generate", "ask", "show", "split", "repair"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	flag := generateCmd.Flags().Lookup("url")
	require.NotNil(t, flag)
	assert.Equal(t, "u", flag.Shorthand)
}
