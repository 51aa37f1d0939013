package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "daas", cmd.Use)
	assert.Equal(t, "Provision tenant SQL Server instances on Kubernetes", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range []string{"operator", "sql-proxy", "request", "version"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), 4)
}

func TestConfigFlags(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func() *cobra.Command
	}{
		{"operator", Operator},
		{"sql-proxy", SQLProxy},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.build()
			flag := c.Flags().Lookup("config")
			require.NotNil(t, flag)
			assert.Equal(t, "c", flag.Shorthand)
			assert.Equal(t, "", flag.DefValue)
			assert.NotNil(t, c.RunE)
		})
	}
}
