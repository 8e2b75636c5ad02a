// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/formatter"
)

// setupCommand handles first-run setup of the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml to --config",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent SQLite migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// serveCommand runs the HTTP API together with the change feed worker.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and keep the category index in sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override server.host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "field",
			Usage: "Category field to filter on (Key, Singer, Composer, hasidut, Beat, Theme, Season, Event, Genre)",
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "Value the field must hold",
		},
		&cli.StringFlag{
			Name:  "beat",
			Usage: "Beat label to narrow to",
		},
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "Substring to match against title, singer, composer, key and tags",
		},
		&cli.BoolFlag{
			Name:  "sort-beat",
			Usage: "Order by beat first",
		},
		&cli.BoolFlag{
			Name:  "sort-key",
			Usage: "Order by key before title",
		},
		&cli.BoolFlag{
			Name:  "musical",
			Usage: "Order keys chromatically",
		},
	}
}

// songsCommand handles catalog operations
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Catalog operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List songs",
				Flags: append(listFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: txt, markdown, csv or json",
						Value:   formatter.FormatText,
					},
					&cli.BoolFlag{
						Name:  "with-index",
						Usage: "Search the full-text index instead of substring matching (requires --query)",
					},
				),
				Action: r.SongsList,
			},
			{
				Name:      "import",
				Usage:     "Import songs from CSV, JSON or tagged audio files",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Validate rows without writing",
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "Maximum writes per second (0 is unlimited)",
					},
					&cli.BoolFlag{
						Name:  "sync",
						Usage: "Drain the change feed into the category index afterwards",
						Value: true,
					},
				},
				Action: r.SongsImport,
			},
			{
				Name:  "export",
				Usage: "Export the catalog and playlists to a directory or the export bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or txt",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: export.bucket)",
					},
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist ID to export (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "skip-songs",
						Usage: "Leave the full catalog out",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "Files per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "sort-beat",
						Usage: "Order songs by beat first",
					},
					&cli.BoolFlag{
						Name:  "sort-key",
						Usage: "Order songs by key before title",
					},
				},
				Action: r.SongsExport,
			},
		},
	}
}

// indexCommand handles category index maintenance
func indexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "index",
		Aliases: []string{"categories"},
		Usage:   "Category index maintenance",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show indexed values of every field, or of one field",
				ArgsUsage: "[field]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.IndexShow,
			},
			{
				Name:   "drain",
				Usage:  "Process pending change events once",
				Action: r.IndexDrain,
			},
			{
				Name:  "reconcile",
				Usage: "Rebuild missing and stale index values from a full scan",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the report as JSON",
					},
				},
				Action: r.IndexReconcile,
			},
		},
	}
}

// adminCommand handles user claims
func adminCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Manage user claims and sessions",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Grant or remove the admin claim",
				ArgsUsage: "<uid>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Claim value",
						Value: true,
					},
				},
				Action: r.AdminSet,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke every session of a user",
				ArgsUsage: "<uid>",
				Action:    r.AdminRevoke,
			},
			{
				Name:      "token",
				Usage:     "Sign an ID token for local logins",
				ArgsUsage: "<uid>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Email claim",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name claim",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: defaultTokenTTL,
					},
				},
				Action: r.AdminToken,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing the catalog.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive song browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"o"},
				Usage:   "Export directory for the e key (default: export.bucket)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format",
				Value: formatter.FormatJSON,
			},
		},
		Action: r.TUI,
	}
}
