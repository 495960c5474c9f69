package flags

import (
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

// Must run before TestHiveEnvironment: env values stick to the shared flags.
func TestCheckRequired(t *testing.T) {
	var checked error
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			checked = CheckRequired(ctx)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
	require.EqualError(t, checked, "flag simulator is required")
}

func TestHiveEnvironment(t *testing.T) {
	t.Setenv("HIVE_SIMULATOR", "http://10.0.0.1:3000")
	t.Setenv("HIVE_TEST_PATTERN", "sync/CLIENT")
	t.Setenv("HIVE_COLLECT_ONLY", "true")

	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			require.NoError(t, CheckRequired(ctx))
			assert.Equal(t, "http://10.0.0.1:3000", ctx.String(Simulator.Name))
			assert.Equal(t, "sync/CLIENT", ctx.String(TestPattern.Name))
			assert.Equal(t, 8545, ctx.Int(ClientRPCPort.Name))
			assert.Equal(t, 8551, ctx.Int(ClientEnginePort.Name))
			assert.True(t, ctx.Bool(CollectOnly.Name))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
}
