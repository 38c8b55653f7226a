package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	a := &application{}

	return &cli.App{
		Name:  "transitsearch",
		Usage: "search transit routes and extract them from result pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before reading configuration",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   formatJSON,
				Usage:   "output format: json or yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL",
			},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", c.String("env-file"), err)
			}
			if err := checkFormat(c.String("format")); err != nil {
				return err
			}
			return a.init(c)
		},
		Commands: []*cli.Command{
			a.searchCommand(),
			a.suggestCommand(),
			a.parseCommand(),
			a.serveCommand(),
			a.watchCommand(),
			a.historyCommand(),
		},
	}
}
