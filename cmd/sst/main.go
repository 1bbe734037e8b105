package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sst-go/internal/app"
	"sst-go/internal/config"
	"sst-go/internal/sst"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an SSTApp. The caller must defer app.Close().
// command identifies the CLI command being run and is what the journal records.
func newApp(ctx context.Context, command string) (*app.SSTApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSSTApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp closes a and reports a close failure unless the command already failed.
func closeApp(a *app.SSTApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

var rootCmd = &cobra.Command{
	Use:          "sst",
	Short:        "Snapshot a game installation and its saves",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		gamePath, _ := cmd.Flags().GetString("game")
		savesPath, _ := cmd.Flags().GetString("saves")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], gamePath, savesPath)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Game:      %s\n", cfg.GamePath)
		fmt.Printf("Snapshots: %s\n", cfg.SnapshotRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Game:         %s\n", cfg.GamePath)
		fmt.Printf("Saves:        %s\n", cfg.SavesPath)
		fmt.Printf("Snapshots:    %s\n", cfg.SnapshotRoot)
		fmt.Printf("Max Depth:    %d\n", cfg.Indexer.MaxDepth)
		fmt.Printf("Ignore:       %s\n", strings.Join(cfg.Indexer.Ignore, ", "))
		fmt.Printf("Executables:  %s\n", strings.Join(cfg.Executables.Names, ", "))
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the game installation and saves",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, "create")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		snap, err := a.Create(ctx, app.NewTerminalProgress(os.Stderr))
		if errors.Is(err, sst.ErrOperationCancelled) {
			return fmt.Errorf("snapshot cancelled, nothing was kept")
		}
		if err != nil {
			return fmt.Errorf("creating snapshot: %w", err)
		}

		owners, paths := snap.DependencyCount()
		fmt.Printf("Created snapshot %s (%s, build %d)\n", snap.ID, snap.Branch, snap.Build)
		fmt.Printf("Stored %s in %d file(s), linked %d file(s) from %d snapshot(s)\n",
			humanize.IBytes(uint64(snap.TotalSize)), len(snap.Files()), paths, owners)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "list")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		for _, w := range a.LoadWarnings() {
			fmt.Fprintf(os.Stderr, "skipped %s\n", w.Error())
		}
		return app.WriteSnapshotList(os.Stdout, a.Snapshots())
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "show")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		snap, err := a.Snapshot(args[0])
		if err != nil {
			return err
		}
		return app.WriteSnapshotDetail(os.Stdout, snap)
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a snapshot, keeping the files other snapshots link to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "delete")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if err := a.Delete(args[0]); err != nil {
			return fmt.Errorf("deleting snapshot: %w", err)
		}
		fmt.Printf("Deleted snapshot %s\n", args[0])
		return nil
	},
}

// restore-saves command
var restoreSavesCmd = &cobra.Command{
	Use:   "restore-saves ID",
	Short: "Copy a snapshot's saves back into the saves directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, "restore-saves")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.RestoreSaves(ctx, args[0], app.NewTerminalProgress(os.Stderr))
		if err != nil {
			return fmt.Errorf("restoring saves: %w", err)
		}
		fmt.Printf("Restored %s of saves from %s\n", humanize.IBytes(uint64(n)), args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		return app.WriteHistory(os.Stdout, ops)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("game", "", "Game installation directory")
	configInitCmd.Flags().String("saves", "", "Save game directory")
	configInitCmd.MarkFlagRequired("game")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restoreSavesCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
