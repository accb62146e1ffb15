package rsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFlags(t *testing.T) {
	common := []string{
		"--recursive", "--links", "--hard-links", "--perms", "--times",
		"--update", "--verbose", "--progress",
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{name: "default deletes", opts: Options{}, want: append(append([]string(nil), common...), "--delete")},
		{name: "preserve", opts: Options{Preserve: true}, want: common},
		{name: "sync", opts: Options{Sync: true}, want: common},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFlags(tt.opts))
		})
	}
}

func TestBuildFlags_NeverDeletesWhenPreservingOrSyncing(t *testing.T) {
	for _, opts := range []Options{{Preserve: true}, {Sync: true}, {Preserve: true, Sync: true}} {
		assert.NotContains(t, BuildFlags(opts), FlagDelete, "%+v", opts)
		assert.False(t, opts.DeleteEnabled())
	}
}

func TestBuildFlags_ReturnsIndependentCopies(t *testing.T) {
	a := BuildFlags(Options{Preserve: true})
	a[0] = "--mutated"
	b := BuildFlags(Options{Preserve: true})
	assert.Equal(t, "--recursive", b[0])
}
