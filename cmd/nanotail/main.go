package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	// Optional .env feeds the NANOTAIL_* flag defaults below.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "nanotail: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nanotail"
	app.Usage = "serve the most recent lines of log files over HTTP"
	app.Version = "0.1.0"

	configFlag := cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to config.toml (defaults to ~/.config/nanotail/config.toml)",
		EnvVar: "NANOTAIL_CONFIG",
	}

	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "run the HTTP server",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{
					Name:   "addr",
					Usage:  "listen address, overrides the config file",
					EnvVar: "NANOTAIL_ADDR",
				},
				cli.StringFlag{
					Name:   "log-dir",
					Usage:  "directory log files are served from, overrides the config file",
					EnvVar: "NANOTAIL_LOG_DIR",
				},
			},
			Action: serve,
		},
		{
			Name:  "query",
			Usage: "print the most recent matching lines of a file, newest first",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{
					Name:  "file, f",
					Usage: "log file to read (required)",
				},
				cli.IntFlag{
					Name:  "count, n",
					Usage: "maximum number of lines (defaults to default_count from the config)",
				},
				cli.StringFlag{
					Name:  "filter",
					Usage: "regular expression lines must match",
				},
				cli.IntFlag{
					Name:  "chunk-size",
					Usage: "read block size in bytes, overrides the config file",
				},
			},
			Action: query,
		},
	}
	return app
}
