// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bodaay/datasetinstaller/pkg/datasets"
)

const defaultConfigSkeleton = `# datasetinstaller configuration.
# "directory" is resolved relative to this file's parent directory
# unless it is already absolute.
directory = "./data"

# [[datasets]]
# name = "example"
# url = "https://example.org/datasets/example/"
# mode = "remote"   # disabled | remote | local | raw
# timeout = 60.0
`

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the dataset installer configuration file",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a skeleton datasetinstaller.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = "datasetinstaller.toml"
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(defaultConfigSkeleton), 0o644); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}

			fmt.Printf("created %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Load and print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return fmt.Errorf("missing --config")
			}

			cfg, originalDirectory, err := datasets.LoadConfiguration(path)
			if err != nil {
				return err
			}

			fmt.Printf("config file:        %s\n", path)
			fmt.Printf("directory (raw):    %s\n", originalDirectory)
			fmt.Printf("directory (resolved): %s\n", cfg.Directory)
			fmt.Printf("datasets (%d):\n", len(cfg.Datasets))
			for _, ds := range cfg.Datasets {
				timeout := "default"
				if ds.Timeout != nil {
					timeout = fmt.Sprintf("%gs", *ds.Timeout)
				}
				fmt.Printf("  - %-20s mode=%-9s url=%-40s timeout=%s\n", ds.Name, ds.Mode, ds.RawURL, timeout)
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Resolve and print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return fmt.Errorf("missing --config")
			}
			_, _, err := datasets.LoadConfiguration(path)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}
