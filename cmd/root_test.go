package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"profile", "fetch", "visit", "list", "stats", "categories", "export", "import", "geocode", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "locale", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	for _, name := range []string{"profile", "pin"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s", name)
	}
}

func TestProfileCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range profileCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"create", "list", "show", "locate"} {
		assert.True(t, names[name], "profile should have subcommand %q", name)
	}
}

func TestProfileLocateCommand_Flags(t *testing.T) {
	for _, name := range []string{"lat", "lng", "address", "radius-miles"} {
		assert.NotNil(t, profileLocateCmd.Flags().Lookup(name), "profile locate should have --%s", name)
	}
}

func TestListCommand_Flags(t *testing.T) {
	for _, name := range []string{"status", "category", "search"} {
		assert.NotNil(t, listCmd.Flags().Lookup(name), "list should have --%s", name)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "csv", flag.DefValue)

	out := exportCmd.Flags().ShorthandLookup("o")
	require.NotNil(t, out)
	assert.Equal(t, "out", out.Name)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
