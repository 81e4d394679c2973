package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBinaryName(t *testing.T) {
	require.Contains(t, String(), "quill")
}

func TestStringReflectsOverride(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "1.2.3"
	require.Equal(t, "quill 1.2.3", String())
}
