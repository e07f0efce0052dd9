// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/hlsx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand writes a config file and prepares the cache directory and content index.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config file, cache directory and content index",
		Action: r.Setup,
	}
}

// downloadCommand caches a stream
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl", "get"},
		Usage:   "Cache a stream for offline playback",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "uri"},
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   "Track key to download (period.group.track), repeatable. Defaults to every track",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait for the download to finish",
				Value: true,
			},
		},
		Action: r.Download,
	}
}

// removeCommand evicts a stream
func removeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a cached stream",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "uri"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait for the removal to finish",
				Value: true,
			},
		},
		Action: r.Remove,
	}
}

// statusCommand reports the cache state of one stream
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a stream is cached",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "uri"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// listCommand lists tracked streams
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List cached streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: txt, json, csv or md",
				Value:   string(formatter.FormatText),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.List,
	}
}

// tracksCommand lists the selectable tracks of a stream
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the selectable tracks of a stream",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "uri"},
		},
		Action: r.Tracks,
	}
}

// catalogCommand lists the configured streams
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "catalog",
		Usage:  "List the configured streams and their cache state",
		Action: r.Catalog,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the cache API and change notifications over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, defaults to server.host:server.port",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive cache management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for the stream catalog",
		Action:  r.TUI,
	}
}
