package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeexecutor/cmd/executor"
	"tradeexecutor/cmd/keys"
	"tradeexecutor/cmd/position"
	"tradeexecutor/cmd/reconcile"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.DebugLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	app := cli.NewApp()
	app.Name = "Trade Executor CMD"
	app.Usage = "Order execution, reconciliation and credential tooling"
	app.Version = Version
	app.Before = func(_ *cli.Context) error {
		// .env is optional; real deployments set the environment directly.
		_ = godotenv.Load()
		SetupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		executorCMD,
		reconcileCMD,
		positionCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	executorCMD = cli.Command{
		Name:      "executor",
		Usage:     "run the execution service, or execute one intent",
		Action:    executorAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "intent", Usage: "JSON intent to execute once, e.g. '{\"symbol\":\"AAPL.US\",\"quantity\":\"10\",\"entry_price\":\"190\"}'"},
			cli.StringFlag{Name: "side", Value: "buy", Usage: "buy or sell"},
			cli.UintFlag{Name: "strategy", Usage: "strategy id the intent belongs to"},
		},
		Description: `Run Executor CMD`,
	}
	reconcileCMD = cli.Command{
		Name:      "reconcile",
		Usage:     "run the order reconciliation loop",
		Action:    reconcileAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "once", Usage: "run a single pass and exit"},
		},
		Description: `Run Reconcile CMD`,
	}
	positionCMD = cli.Command{
		Name:        "position",
		Usage:       "print the available position of a symbol",
		Action:      positionAction,
		ArgsUsage:   "<symbol>",
		Description: `Run Position CMD`,
	}
	keysCMD = cli.Command{
		Name:  "keys",
		Usage: "encrypt or decrypt broker credentials with EXCHANGE_CREDENTIALS_KEY",
		Subcommands: []cli.Command{
			{
				Name:      "encrypt",
				Usage:     "print ciphertexts for LONGPORT_*_ENC",
				ArgsUsage: "<value>...",
				Action: func(c *cli.Context) error {
					return keys.Encrypt(os.Stdout, c.Args())
				},
			},
			{
				Name:      "decrypt",
				Usage:     "print plaintexts of ciphertexts",
				ArgsUsage: "<ciphertext>...",
				Action: func(c *cli.Context) error {
					return keys.Decrypt(os.Stdout, c.Args())
				},
			},
		},
	}
)

func executorAction(c *cli.Context) error {
	logrus.Info("Starting executor CMD")

	e := &executor.Executor{
		Log:        logrus.WithField("cmd", "executor"),
		Intent:     c.String("intent"),
		Side:       c.String("side"),
		StrategyID: c.Uint("strategy"),
	}
	if err := e.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reconcileAction(c *cli.Context) error {
	logrus.Info("Starting reconcile CMD")

	r := &reconcile.Reconcile{
		Log:  logrus.WithField("cmd", "reconcile"),
		Once: c.Bool("once"),
	}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func positionAction(c *cli.Context) error {
	p := &position.Position{
		Log:    logrus.WithField("cmd", "position"),
		Symbol: c.Args().First(),
	}
	return p.Start()
}
