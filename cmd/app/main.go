package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/keyhash/internal"
	pkgconfig "github.com/starford/keyhash/pkg/config"
)

// withApp loads the config named by --config and runs fn against a fresh App.
func withApp(cmd *cli.Command, fn func(*internal.App) error) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	app, err := internal.New(internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	defer app.Close()

	return fn(app)
}

func requireArgs(cmd *cli.Command, n int, usage string) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("usage: %s %s", cmd.Name, usage)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "keyhash",
		Usage: "Hash the Info value stored under a key of a nested JSON document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("KEYHASH_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Write {key}_hashed_{unix}.txt for each key and print its path",
				ArgsUsage: "SOURCE KEY [KEY...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 2, "SOURCE KEY [KEY...]"); err != nil {
						return err
					}
					args := cmd.Args().Slice()
					return withApp(cmd, func(app *internal.App) error {
						return app.Extract(ctx, args[0], args[1:])
					})
				},
			},
			{
				Name:      "watch",
				Usage:     "Extract keys again whenever SOURCE changes",
				ArgsUsage: "SOURCE KEY [KEY...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 2, "SOURCE KEY [KEY...]"); err != nil {
						return err
					}
					args := cmd.Args().Slice()
					return withApp(cmd, func(app *internal.App) error {
						return app.Watch(ctx, args[0], args[1:])
					})
				},
			},
			{
				Name:  "history",
				Usage: "List recorded artifacts, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Only artifacts for this key"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum rows", Value: 50},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(cmd, func(app *internal.App) error {
						return app.History(cmd.String("key"), int(cmd.Int("limit")))
					})
				},
			},
			{
				Name:      "encrypt",
				Usage:     "Encrypt MESSAGE with a 32-character SECRET",
				ArgsUsage: "MESSAGE SECRET",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 2, "MESSAGE SECRET"); err != nil {
						return err
					}
					return withApp(cmd, func(app *internal.App) error {
						return app.Encrypt(cmd.Args().Get(0), cmd.Args().Get(1))
					})
				},
			},
			{
				Name:      "decrypt",
				Usage:     "Decrypt CIPHERTEXT with a 32-character SECRET",
				ArgsUsage: "CIPHERTEXT SECRET",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 2, "CIPHERTEXT SECRET"); err != nil {
						return err
					}
					return withApp(cmd, func(app *internal.App) error {
						return app.Decrypt(cmd.Args().Get(0), cmd.Args().Get(1))
					})
				},
			},
			{
				Name:      "pairs",
				Usage:     "Print three random adjacent letter pairs of WORD",
				ArgsUsage: "WORD",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 1, "WORD"); err != nil {
						return err
					}
					return withApp(cmd, func(app *internal.App) error {
						return app.Pairs(cmd.Args().First())
					})
				},
			},
			{
				Name:      "post",
				Usage:     "POST a JSON object as a base64 form payload",
				ArgsUsage: "JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Endpoint (defaults to poster.url from config)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 1, "JSON"); err != nil {
						return err
					}
					return withApp(cmd, func(app *internal.App) error {
						return app.Post(ctx, cmd.String("url"), cmd.Args().First())
					})
				},
			},
			{
				Name:      "touch",
				Usage:     "Set last_updated in a JSON file found on the search path",
				ArgsUsage: "JSON_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Directory appended to the search path", Value: "."},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if err := requireArgs(cmd, 1, "JSON_FILE"); err != nil {
						return err
					}
					return withApp(cmd, func(app *internal.App) error {
						return app.Touch(cmd.Args().First(), cmd.String("dir"))
					})
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve keyhash tools over MCP stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(cmd, func(app *internal.App) error {
						return app.ServeMCP()
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
