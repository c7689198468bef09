package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/urfave/cli/v2"

	"github.com/nerrad567/iobridge/internal/infrastructure/config"
	"github.com/nerrad567/iobridge/internal/infrastructure/i2cbus"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

const (
	flagConfig = "config"
	flagTarget = "target"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "iobridge",
		Usage:   "bridge I2C peripherals to Pure Data over OSC",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				Value:   defaultConfigPath,
				EnvVars: []string{"IOBRIDGE_CONFIG"},
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the bridge until interrupted (default)",
				Action: runAction,
			},
			{
				Name:      "send",
				Usage:     "send one OSC command to a running bridge",
				ArgsUsage: "<address> [args...]",
				Description: "Arguments that parse as integers are sent as int32, other numbers as\n" +
					"float32 and everything else as strings, e.g.\n\n" +
					"   iobridge send /create adc1 ads1015 0x48\n" +
					"   iobridge send /poll 25\n" +
					"   iobridge send /touch1/threshold 12 6",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagTarget,
						Usage: "bridge address (default: osc.listen from the configuration)",
					},
				},
				Action: sendAction,
			},
			{
				Name:   "types",
				Usage:  "list the supported peripheral types",
				Action: typesAction,
			},
			{
				Name:   "buses",
				Usage:  "list the I2C buses found on this host",
				Action: busesAction,
			},
		},
	}
}

// loadConfig reads the configured file. A missing file at the default
// path falls back to built-in defaults plus environment overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !c.IsSet(flagConfig) && errors.Is(err, fs.ErrNotExist) {
		return config.Load("")
	}
	return nil, fmt.Errorf("loading config %s: %w", path, err)
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return run(c.Context, cfg)
}

func typesAction(c *cli.Context) error {
	for _, t := range peripheral.DefaultCatalog().Types() {
		fmt.Fprintln(c.App.Writer, t)
	}
	return nil
}

func busesAction(c *cli.Context) error {
	names, err := i2cbus.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "no I2C buses found")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(c.App.Writer, n)
	}
	return nil
}
