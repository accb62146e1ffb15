package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dotfilesDir(t *testing.T, pkgs ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range pkgs {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, p), 0o755))
	}
	return dir
}

func TestList(t *testing.T) {
	dir := dotfilesDir(t, "zsh", "nvim", ".git")

	out, err := execute(t, newTestRoot(dir, newListCmd()), "", "list")
	require.NoError(t, err)
	assert.Equal(t, "nvim\nzsh\n", out)
}

func TestList_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := execute(t, newTestRoot(dir, newListCmd()), "", "list")
	assert.ErrorContains(t, err, "dotfiles directory not found")
}

func TestStow_Patterns(t *testing.T) {
	dir := dotfilesDir(t, "zsh", "zsh-plugins", "nvim")
	runner := &fakeRunner{}

	out, err := execute(t, newTestRoot(dir, newStowCmd(runner)), "", "stow", "zsh*")
	require.NoError(t, err)
	assert.Equal(t, []string{"stow -d " + dir + " -t /home/test -v zsh zsh-plugins"}, runner.commands())
	assert.Contains(t, out, "✓ zsh linked")
	assert.Contains(t, out, "✓ zsh-plugins linked")
}

func TestUnstowAndRestow_All(t *testing.T) {
	dir := dotfilesDir(t, "tmux", "nvim")
	runner := &fakeRunner{}

	_, err := execute(t, newTestRoot(dir, newUnstowCmd(runner)), "", "unstow", "--all")
	require.NoError(t, err)
	_, err = execute(t, newTestRoot(dir, newRestowCmd(runner)), "", "restow", "-a", "--stow", "/usr/local/bin/stow")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stow -d " + dir + " -t /home/test -D -v nvim tmux",
		"/usr/local/bin/stow -d " + dir + " -t /home/test -R -v nvim tmux",
	}, runner.commands())
}

func TestStow_SelectionRequired(t *testing.T) {
	dir := dotfilesDir(t, "zsh")
	runner := &fakeRunner{}

	_, err := execute(t, newTestRoot(dir, newStowCmd(runner)), "", "stow")
	assert.ErrorContains(t, err, "package patterns or --all")

	_, err = execute(t, newTestRoot(dir, newStowCmd(runner)), "", "stow", "--all", "zsh")
	assert.ErrorContains(t, err, "package patterns or --all")
	assert.Empty(t, runner.commands())
}

func TestStow_Failure(t *testing.T) {
	dir := dotfilesDir(t, "zsh")
	runner := &fakeRunner{code: 1}

	out, err := execute(t, newTestRoot(dir, newStowCmd(runner)), "", "stow", "zsh")
	assert.ErrorContains(t, err, "exit status 1")
	assert.NotContains(t, out, "linked")
}

func TestStow_DirFromEnvironment(t *testing.T) {
	dir := dotfilesDir(t, "git")
	t.Setenv("DOTS_DIR", dir)
	runner := &fakeRunner{}

	_, err := execute(t, newTestRoot("/nonexistent", newStowCmd(runner)), "", "stow", "git")
	require.NoError(t, err)
	assert.Equal(t, []string{"stow -d " + dir + " -t /home/test -v git"}, runner.commands())
}
