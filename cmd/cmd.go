// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunegate/internal/formatter"
	"github.com/desertthunder/tunegate/internal/services"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func debugFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"verbose"},
		Usage:   "Enable debug logging",
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API until interrupted",
		Flags: []cli.Flag{
			configFlag(),
			debugFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override server.host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Flags:  []cli.Flag{configFlag(), debugFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// searchCommand queries a provider directly through an in-memory cache
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search a music provider and print normalized results",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			debugFlag(),
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Provider to search (mailru or spotify)",
				Value: services.MailRu,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (json, csv, markdown, txt)",
				Value:   string(formatter.JSON),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write results to a file instead of stdout",
			},
		},
		Action: r.Search,
	}
}

// batchCommand runs every query in a file through one provider
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Search a list of queries (one per line) and write a file per query plus a manifest",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "file",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			debugFlag(),
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Provider to search (mailru or spotify)",
				Value: services.MailRu,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results per query",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (json, csv, markdown, txt)",
				Value:   string(formatter.JSON),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: search_batch_{timestamp})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent workers (max 10)",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Queries per second",
				Value: 5,
			},
		},
		Action: r.Batch,
	}
}

// userCommand manages accounts from the server side
func userCommand(r *Runner) *cli.Command {
	emailFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "email",
			Usage:    "Account email",
			Required: true,
		}
	}

	return &cli.Command{
		Name:  "user",
		Usage: "Account administration",
		Commands: []*cli.Command{
			{
				Name:   "deactivate",
				Usage:  "Deactivate an account; its session tokens stop verifying immediately",
				Flags:  []cli.Flag{configFlag(), emailFlag()},
				Action: r.UserDeactivate,
			},
			{
				Name:   "activate",
				Usage:  "Re-activate an account",
				Flags:  []cli.Flag{configFlag(), emailFlag()},
				Action: r.UserActivate,
			},
		},
	}
}
