package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SOS_TEST_STRING", "value")
	t.Setenv("SOS_TEST_INT", "42")
	t.Setenv("SOS_TEST_BAD_INT", "forty-two")
	t.Setenv("SOS_TEST_BOOL", "true")
	t.Setenv("SOS_TEST_DURATION", "45s")
	t.Setenv("SOS_TEST_SLICE", "a, b,,c ")

	assert.Equal(t, "value", String("SOS_TEST_STRING", "default"))
	assert.Equal(t, "default", String("SOS_TEST_UNSET", "default"))
	assert.Equal(t, 42, Int("SOS_TEST_INT", 1))
	assert.Equal(t, 1, Int("SOS_TEST_BAD_INT", 1))
	assert.True(t, Bool("SOS_TEST_BOOL", false))
	assert.Equal(t, 45*time.Second, Duration("SOS_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, Slice("SOS_TEST_SLICE", nil))
	assert.Equal(t, []string{"x"}, Slice("SOS_TEST_UNSET", []string{"x"}))
}

func TestLoadFile(t *testing.T) {
	type section struct {
		Port     string        `yaml:"port"`
		Cooldown time.Duration `yaml:"cooldown"`
	}
	type doc struct {
		Service section `yaml:"service"`
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  port: \"9000\"\n  cooldown: 30s\n"), 0o600))

	var out doc
	require.NoError(t, LoadFile(path, &out))
	assert.Equal(t, "9000", out.Service.Port)
	assert.Equal(t, 30*time.Second, out.Service.Cooldown)

	assert.NoError(t, LoadFile("", &out))
	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &out))
}
