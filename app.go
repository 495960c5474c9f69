package hivesim

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-hivesim/exitcodes"
	"github.com/ethereum-optimism/infra/op-hivesim/flags"
	"github.com/ethereum-optimism/infra/op-hivesim/service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

// RunFunc is the entry point of a simulator.
type RunFunc func(ctx context.Context, sim *Simulation) error

// NewApp creates the command line application of a simulator. It reads the hive
// environment, sets up logging and metrics and invokes run with a new simulation
// session. The results table is printed when run returns.
func NewApp(name, usage string, run RunFunc) *cli.App {
	app := cli.NewApp()
	app.Name = name
	app.Usage = usage
	app.Flags = flags.Flags
	app.Action = func(cliCtx *cli.Context) error {
		return runApp(cliCtx, run)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), ExitCode(err)))
	}
	return app
}

func runApp(cliCtx *cli.Context, run RunFunc) error {
	logger := oplog.NewLogger(oplog.AppOut(cliCtx), oplog.ReadCLIConfig(cliCtx))
	oplog.SetGlobalLogHandler(logger.Handler())

	cfg, err := NewConfig(cliCtx, logger)
	if err != nil {
		return err
	}
	cfg.Log.Debug("Config", "config", cfg)

	if cfg.MetricsAddr != "" {
		svc := service.New(logger)
		if err := svc.Start(cfg.MetricsAddr); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to start metrics server: %w", err))
		}
		defer svc.Shutdown()
	}

	sim, err := New(cfg)
	if err != nil {
		return err
	}
	sim.log.Info("Simulator started", "simulator", cfg.SimulatorURL, "pattern", cfg.TestPattern)
	err = run(cliCtx.Context, sim)
	sim.Summary().Render(cliCtx.App.Writer)
	if err != nil {
		return err
	}
	sim.log.Info("Simulator finished", "stats", fmt.Sprintf("%+v", sim.Summary().Stats()))
	return nil
}

// ExitCode maps the error returned by a simulator to its process exit code.
// Failed tests are reported to hive and do not make the simulator fail.
func ExitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return exitcodes.RuntimeErr
}
