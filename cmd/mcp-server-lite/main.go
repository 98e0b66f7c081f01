// Package main provides the lightweight MCP entry point. It needs no
// external services: reports and reference values live in SQLite files
// under the data directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/labpanel-mcp-server/internal/config"
	"github.com/labpanel-mcp-server/internal/mcp"
	"github.com/labpanel-mcp-server/internal/setup"
)

func main() {
	app := &cli.Command{
		Name:   "mcp-server-lite",
		Usage:  "Lab report analysis tools over MCP",
		Action: serve,
		Commands: []*cli.Command{
			cmdSetup,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-server-lite: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, _ *cli.Command) error {
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}

var cmdSetup = &cli.Command{
	Name:  "setup",
	Usage: "Register the server with a desktop MCP client",
	Commands: []*cli.Command{
		{
			Name:  "desktop",
			Usage: "Add or update the server entry in the desktop client config",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "binary",
					Aliases: []string{"b"},
					Usage:   "path to the mcp-server-lite binary (defaults to this executable)",
				},
				&cli.StringFlag{
					Name:    "data-dir",
					Aliases: []string{"d"},
					Usage:   "data directory passed to the server",
				},
				&cli.StringFlag{
					Name:  "config",
					Usage: "client config file (defaults to the platform location)",
				},
			},
			Action: setupDesktop,
		},
		{
			Name:  "status",
			Usage: "Show the registration status as JSON",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "config", Usage: "client config file"},
			},
			Action: setupStatus,
		},
	},
}

func configPath(cmd *cli.Command) (string, error) {
	if path := cmd.String("config"); path != "" {
		return path, nil
	}
	return setup.DesktopConfigPath()
}

func setupDesktop(_ context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	binary := cmd.String("binary")
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return fmt.Errorf("cannot determine executable path: %w", err)
		}
	}

	if err := setup.Configure(path, setup.Options{BinaryPath: binary, DataDir: cmd.String("data-dir")}); err != nil {
		return err
	}
	fmt.Printf("Registered %s in %s\nRestart the desktop client to load it.\n", setup.ServerName, path)
	return nil
}

func setupStatus(_ context.Context, cmd *cli.Command) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	status, err := setup.GetStatus(path, config.DefaultLiteConfig().DataDir)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
