package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"zen-journal-backend/internal/config"
	"zen-journal-backend/internal/db"
	"zen-journal-backend/internal/store"
)

type app struct {
	cfgPath string
	cfg     *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "zen-journal",
		Short:        "Journal backend: extraction, organized lists and calendar sync.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath, "Path to the YAML config file.")

	addServe(root, a)
	addMigrate(root, a)
	addToken(root, a)
	addWrite(root, a)
	addLists(root, a)
	addConfig(root, a)
	addVersion(root)
	return root
}

// open connects to the configured database and applies the schema.
func (a *app) open(ctx context.Context) (*db.DB, *store.Store, error) {
	if a.cfg.DBDriver == db.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	d, err := db.Connect(a.cfg.DBDriver, a.cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", a.cfg.DBDriver, err)
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, store.New(d), nil
}

func addMigrate(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", d.Driver)
			return nil
		},
	})
}

func addConfig(root *cobra.Command, a *app) {
	var force bool
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage the config file."}
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file.",
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteDefault(a.cfgPath, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file.")
	cfgCmd.AddCommand(initCmd)
	root.AddCommand(cfgCmd)
}
