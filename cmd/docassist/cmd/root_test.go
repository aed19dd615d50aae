package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("DOCASSIST_DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("DOCASSIST_INDEX_DIR", filepath.Join(tmp, "index"))
	t.Setenv("DOCASSIST_LOG_FILE", filepath.Join(tmp, "test.log"))
}

func TestRootCmd_ListsSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "ingest")
	assert.Contains(t, names, "ask")
	assert.Contains(t, names, "docs")
	assert.Contains(t, names, "watch")
	assert.Contains(t, names, "version")
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	setTestEnv(t)

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "docassist")
}

func TestAskCmd_FailsBeforeFirstIngest(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DOCASSIST_EMBEDDER", "static")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask", "anything"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest")
}

func TestDocsCmd_FailsBeforeFirstIngest(t *testing.T) {
	setTestEnv(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"docs"})

	assert.Error(t, root.Execute())
}
