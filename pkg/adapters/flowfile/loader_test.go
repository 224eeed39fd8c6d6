package flowfile_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattlebot/wattle/pkg/adapters/flowfile"
	"github.com/wattlebot/wattle/pkg/domain"
)

const sampleFlow = `
name: onboarding
contact:
  company_name: Acme
context_vars:
  - name: name
    permanent: true
blocks:
  - id: greeting
    name: Greeting
    starts_conversation: true
    patterns:
      - text: hi
      - text: hello
    message:
      text:
        - "Hello there!"
    attached_block: ask_name
  - id: ask_name
    message:
      text:
        - "What is your name?"
    next_blocks:
      - thanks
  - id: thanks
    patterns:
      - text: "/.+/"
    capture_vars:
      - entity: -1
        context_var: name
    message:
      text:
        - "Nice to meet you, {context.vars.name}!"
    options:
      typing: 500
`

func TestParse(t *testing.T) {
	file, err := flowfile.Parse(strings.NewReader(sampleFlow))
	require.NoError(t, err)

	assert.Equal(t, "onboarding", file.Name)
	require.Len(t, file.Blocks, 3)

	greeting := file.Blocks[0]
	assert.Equal(t, "greeting", greeting.ID)
	assert.True(t, greeting.StartsConversation)
	assert.Equal(t, "ask_name", greeting.AttachedBlock)
	require.Len(t, greeting.Patterns, 2)

	thanks := file.Blocks[2]
	require.Len(t, thanks.CaptureVars, 1)
	assert.Equal(t, domain.CaptureWholeMessage, thanks.CaptureVars[0].Entity)
	assert.Equal(t, 500, thanks.Options.Typing)

	require.Len(t, file.ContextVars, 1)
	assert.True(t, file.ContextVars[0].Permanent)
}

func TestParse_UnknownFieldsRejected(t *testing.T) {
	_, err := flowfile.Parse(strings.NewReader(`
blocks:
  - id: a
    mesage:
      text: ["typo"]
`))
	assert.Error(t, err)
}

func TestParse_EmptyFlowRejected(t *testing.T) {
	_, err := flowfile.Parse(strings.NewReader(`name: empty`))
	assert.Error(t, err)
}

func TestLoad_AndBuildSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFlow), 0644))

	file, err := flowfile.Load(path)
	require.NoError(t, err)

	source, err := file.BlockSource()
	require.NoError(t, err)
	ctx := context.Background()

	entries, err := source.EntryBlocks(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "greeting", entries[0].ID)

	vars, err := source.ContextVars(ctx)
	require.NoError(t, err)
	require.Len(t, vars, 1)

	contact, err := file.Settings().Settings(ctx, "contact")
	require.NoError(t, err)
	assert.Equal(t, "Acme", contact["company_name"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := flowfile.Load("/nonexistent/flow.yaml")
	assert.Error(t, err)
}
