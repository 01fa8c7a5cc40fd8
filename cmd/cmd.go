// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// convertCommand handles conversions and result retrieval
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "convert",
		Aliases: []string{"c"},
		Usage:   "Convert a track or playlist link to another platform",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Resolve a link, match every track, and build the destination playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "link",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Aliases:  []string{"t"},
						Usage:    "Destination platform (spotify, youtube)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Show an interactive progress view",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the full result as JSON",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the result to a file (.json or .csv)",
					},
				},
				Action: r.ConvertRun,
			},
			{
				Name:  "result",
				Usage: "Claim a stored conversion result by session id",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ConvertResult,
			},
		},
	}
}

// fixCommand applies manual corrections to a converted playlist
func fixCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fix",
		Usage: "Apply manual corrections to a converted playlist",
		Commands: []*cli.Command{
			{
				Name:  "apply",
				Usage: "Add chosen tracks to the destination playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "platform",
						Aliases:  []string{"p"},
						Usage:    "Destination platform",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Destination playlist id (with --track)",
					},
					&cli.StringFlag{
						Name:  "track",
						Usage: "Track id to add (with --playlist)",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON file with a list of fixes",
					},
				},
				Action: r.FixApply,
			},
		},
	}
}

// authCommand links platform accounts
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Link platform accounts",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Run the OAuth flow for a platform (spotify, youtube)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "platform",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show which platforms have saved tokens",
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the session store",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file and session database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "headers",
				Usage: "Capture browser headers for Apple Music scraping from a cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "Raw cURL command copied from browser devtools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing the cURL command",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to save the headers JSON",
					},
				},
				Action: r.SetupHeaders,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the conversion HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to bind",
			},
		},
		Action: r.Serve,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		convertCommand, fixCommand, authCommand, setupCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
