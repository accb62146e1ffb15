package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string, string) error {
	return errors.New("offline")
}

func writePackageList(t *testing.T, dir string) {
	t.Helper()
	list := "[dev]\ngit\nmake\n\n[utils]\nhtop\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, packageListName), []byte(list), 0o644))
}

func TestInstall_Selection(t *testing.T) {
	dir := t.TempDir()
	writePackageList(t, dir)
	runner := &fakeRunner{}

	out, err := execute(t, newTestRoot(dir, newInstallCmd(runner, failingFetcher{})), "", "install", "4,0")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sudo apt install -y htop",
		"sudo apt install -y git make",
	}, runner.commands())
	assert.Contains(t, out, "✓ Option 0 completed successfully")
}

func TestInstall_Menu(t *testing.T) {
	dir := t.TempDir()
	writePackageList(t, dir)
	runner := &fakeRunner{}

	out, err := execute(t, newTestRoot(dir, newInstallCmd(runner, failingFetcher{})), "0\nn\n", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "DEBIAN PACKAGE INSTALLER")
	assert.Contains(t, out, "Do you want to continue? (y/n): ")
	assert.Equal(t, []string{"sudo apt install -y git make"}, runner.commands())
}

func TestInstall_PackageListFlag(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	writePackageList(t, other)
	runner := &fakeRunner{}

	root := newTestRoot(dir, newInstallCmd(runner, failingFetcher{}))
	_, err := execute(t, root, "", "install", "--packages", filepath.Join(other, packageListName), "0")
	require.NoError(t, err)
	assert.Len(t, runner.commands(), 1)
}

func TestInstall_MissingPackageList(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, newTestRoot(dir, newInstallCmd(&fakeRunner{}, failingFetcher{})), "", "install", "0")
	assert.ErrorContains(t, err, "package list not found")
}

func TestInstall_DownloadFailure(t *testing.T) {
	dir := t.TempDir()
	writePackageList(t, dir)
	runner := &fakeRunner{}

	root := newTestRoot(dir, newInstallCmd(runner, failingFetcher{}))
	_, err := execute(t, root, "", "install", "--work-dir", t.TempDir(), "3")
	assert.ErrorContains(t, err, "offline")
	assert.Empty(t, runner.commands())
}
