package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/HtoHe/dotfiles/internal/version"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "bnr", SilenceUsage: true}
	cmd.AddCommand(newVersionCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"version"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	out, err := runVersion(t)
	require.NoError(t, err)

	got := strings.TrimSpace(out)
	assert.Equal(t, version.DetailedWithApp(), got)
	assert.True(t, strings.HasPrefix(got, "bnr "))
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := runVersion(t, "--short")
	require.NoError(t, err)
	assert.Equal(t, version.ShortWithApp()+"\n", out)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runVersion(t, "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "bnr", info.App)
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestVersionCommand_ShortAndJSONConflict(t *testing.T) {
	_, err := runVersion(t, "--short", "--json")
	assert.Error(t, err)
}
