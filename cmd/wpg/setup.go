package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wpgraph/wpgraph/internal/config"
	"github.com/wpgraph/wpgraph/internal/debug"
)

var noStore = map[string]string{noStoreAnnotation: "true"}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		GroupID:     "setup",
		Short:       "Create .wpgraph/config.yaml in the current directory",
		Args:        cobra.NoArgs,
		Annotations: noStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path, err := config.InitProject(cwd)
			if err != nil {
				return err
			}
			if err := config.Initialize(); err != nil {
				return err
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), map[string]string{"config": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Initialized %s\n", renderPass(iconPass), path)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		GroupID:     "setup",
		Short:       "Read and write wpg settings",
		Annotations: noStore,
	}

	get := &cobra.Command{
		Use:         "get <key>",
		Short:       "Print the effective value of a setting",
		Args:        cobra.ExactArgs(1),
		Annotations: noStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			value := config.Viper().Get(args[0])
			if a.json {
				return outputJSON(cmd.OutOrStdout(), map[string]interface{}{args[0]: value})
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Write a setting to the project config.yaml",
		Args:        cobra.ExactArgs(2),
		Annotations: noStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetYamlConfig(args[0], args[1]); err != nil {
				return err
			}
			if !a.json {
				debug.PrintNormal(cmd.OutOrStdout(), "%s %s = %s\n", renderPass(iconPass), args[0], args[1])
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:         "list",
		Short:       "Print every setting with its effective value",
		Args:        cobra.NoArgs,
		Annotations: noStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, 0, len(config.SettableKeys))
			for k := range config.SettableKeys {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			settings := make(map[string]interface{}, len(keys))
			for _, k := range keys {
				settings[k] = config.Viper().Get(k)
			}
			if a.json {
				return outputJSON(cmd.OutOrStdout(), settings)
			}
			if used := config.ConfigFileUsed(); used != "" {
				debug.PrintlnNormal(cmd.OutOrStdout(), renderMuted("# "+used))
			}
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, settings[k])
			}
			return nil
		},
	}

	cmd.AddCommand(get, set, list)
	return cmd
}
