package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.ngs.io/ocean-wms/internal/adapter/classify"
	"go.ngs.io/ocean-wms/internal/app"
	"go.ngs.io/ocean-wms/internal/config"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	topologyCmd.AddCommand(topologyBuildCmd)
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	defaultsCmd.AddCommand(defaultsImportCmd)
	rootCmd.AddCommand(classifyCmd, topologyCmd, cacheCmd, defaultsCmd)
}

var rootCmd = &cobra.Command{
	Use:          "wmsctl",
	Short:        "Administer ocean WMS datasets, topologies and caches",
	SilenceUsage: true,
}

// openApp loads configuration and wires the stores.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return app.New(cfg, logger)
}

var classifyCmd = &cobra.Command{
	Use:   "classify [uri]",
	Short: "Print the grid type of a NetCDF file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("stat %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), classify.Classify(args[0]).String())
		return nil
	},
}

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Manage dataset topologies",
}

var topologyBuildCmd = &cobra.Command{
	Use:   "build [dataset]",
	Short: "Rebuild a dataset topology and refresh its layers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		layers, err := a.Service.Update(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d layers\n", args[0], len(layers))
		for _, l := range layers {
			fmt.Fprintf(out, "  %-24s %-8s %s\n", l.VarName, l.Kind, l.StdName)
		}
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear dataset caches",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status [dataset]",
	Short: "Report whether a dataset has a cached topology and how many images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ds, err := a.Catalog.Dataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries, err := a.Artifacts.Entries(a.Topologies.Handle(ds))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: topology cached=%t images=%d\n", ds.Slug, a.Topologies.HasCache(ds), len(entries))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dataset]",
	Short: "Remove a dataset's cached topology and images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.Service.ClearCache(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: cache cleared\n", args[0])
		return nil
	},
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Manage global variable color-scale defaults",
}

var defaultsImportCmd = &cobra.Command{
	Use:   "import [csv]",
	Short: "Import variable defaults (std_name,units,default_min,default_max,logscale)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		n, err := a.ImportDefaults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d variable defaults\n", n)
		return nil
	},
}
