package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "HIVE"

var (
	Simulator = &cli.StringFlag{
		Name:    "simulator",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SIMULATOR"),
		Usage:   "URL of the hive simulation API (set by hive)",
	}
	TestPattern = &cli.StringFlag{
		Name:    "test-pattern",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_PATTERN"),
		Usage:   "Selects suites and tests to run (eg. 'suite/test'). Empty runs everything",
	}
	ClientRPCPort = &cli.IntFlag{
		Name:    "client-rpc-port",
		Value:   8545,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CLIENT_RPC_PORT"),
		Usage:   "Port of the JSON-RPC endpoint exposed by client containers",
	}
	ClientEnginePort = &cli.IntFlag{
		Name:    "client-engine-port",
		Value:   8551,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CLIENT_ENGINE_PORT"),
		Usage:   "Port of the JWT authenticated engine API exposed by client containers",
	}
	APIRetries = &cli.Uint64Flag{
		Name:    "api-retries",
		Value:   3,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_RETRIES"),
		Usage:   "Number of retries for transient simulation API failures. 0 disables retrying",
	}
	APIRetryDelay = &cli.DurationFlag{
		Name:    "api-retry-delay",
		Value:   250 * time.Millisecond,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_RETRY_DELAY"),
		Usage:   "Initial backoff between simulation API retries (e.g. '250ms', '1s')",
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "METRICS_ADDR"),
		Usage:   "Listen address of the metrics and healthz server (e.g. '0.0.0.0:7300'). Empty disables it",
	}
	CollectOnly = &cli.BoolFlag{
		Name:    "collect-only",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COLLECT_ONLY"),
		Usage:   "Register tests without running them, except those marked AlwaysRun",
	}
)

var requiredFlags = []cli.Flag{
	Simulator,
}

var optionalFlags = []cli.Flag{
	TestPattern,
	ClientRPCPort,
	ClientEnginePort,
	APIRetries,
	APIRetryDelay,
	MetricsAddr,
	CollectOnly,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired returns an error naming the first required flag that is not set.
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
