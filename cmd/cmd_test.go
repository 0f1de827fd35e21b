package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-mirror/internal/scheduler"
)

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, looksLikeURL("https://example.com/docs"))
	assert.True(t, looksLikeURL("http://example.com"))
	assert.False(t, looksLikeURL("example.com"))
	assert.False(t, looksLikeURL("crawl"))
}

func TestReadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://a.example.com/x\n\n# comment\nhttps://b.example.com/y\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seeds, err := readSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "https://a.example.com/x", seeds[0].URL)
	assert.Equal(t, "https://b.example.com/y", seeds[1].URL)
	assert.Nil(t, seeds[0].Scope, "scrape seeds carry no crawl scope")
}

func TestReadSeedFileMissing(t *testing.T) {
	_, err := readSeedFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printSummary(cmd, scheduler.Summary{Saved: 3, Elapsed: 1200 * time.Millisecond})
	assert.Equal(t, "Completed in 1.2s (3 saved)\n", buf.String())

	buf.Reset()
	printSummary(cmd, scheduler.Summary{
		Saved:    1,
		Failures: []string{"https://x/a: HTTP 500 Internal Server Error"},
		Elapsed:  2 * time.Second,
	})
	out := buf.String()
	assert.Contains(t, out, "Completed in 2s (1 saved, 1 failed)")
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "1. https://x/a: HTTP 500 Internal Server Error")
}

func TestRootCommandFlagsBindToConfig(t *testing.T) {
	v := viper.New()
	root := newRootCmd(v)
	require.NoError(t, root.PersistentFlags().Set("maxDepth", "5"))
	require.NoError(t, root.PersistentFlags().Set("robots", "false"))
	require.NoError(t, root.PersistentFlags().Set("outDir", "mirror"))

	assert.Equal(t, 5, v.GetInt("crawler.max_depth"))
	assert.False(t, v.GetBool("crawler.respect_robots"))
	assert.Equal(t, "mirror", v.GetString("output.dir"))
}

func TestRootHelpWithoutArgs(t *testing.T) {
	v := viper.New()
	root := newRootCmd(v)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "docs-mirror")
}
