package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tmzdev/tmz/internal/config"
	"github.com/tmzdev/tmz/internal/paths"
)

func newAliasCmd() *cobra.Command {
	aliasCmd := &cobra.Command{
		Use:   "alias [name] [value]",
		Short: "Manage conversation aliases",
		Long:  "Without arguments, lists aliases. With a name and value, creates or\nupdates an alias. The value may be a conversation id or a name fragment.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			switch len(args) {
			case 0:
				if len(a.cfg.Aliases) == 0 {
					fmt.Println("no aliases defined")
					return nil
				}
				names := make([]string, 0, len(a.cfg.Aliases))
				for name := range a.cfg.Aliases {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("%-20s %s\n", name, a.cfg.Aliases[name])
				}
				return nil
			case 1:
				value, ok := a.cfg.ResolveAlias(args[0])
				if !ok {
					return fmt.Errorf("no alias named %q", args[0])
				}
				fmt.Println(value)
				return nil
			default:
				if err := config.AddAlias(paths.ConfigPath(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("alias %s -> %s\n", args[0], args[1])
				return nil
			}
		},
	}

	aliasCmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RemoveAlias(paths.ConfigPath(), args[0]); err != nil {
				return err
			}
			fmt.Printf("alias %s removed\n", args[0])
			return nil
		},
	})

	return aliasCmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return toml.NewEncoder(os.Stdout).Encode(a.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(paths.ConfigPath())
		},
	})

	return configCmd
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the local cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache contents summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openStore()
			if err != nil {
				return err
			}
			stats, err := db.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("conversations: %d\n", stats.Conversations)
			fmt.Printf("messages: %d\n", stats.Messages)
			fmt.Printf("assets: %d (%d bytes)\n", stats.Assets, stats.AssetBytes)
			fmt.Printf("path: %s\n", paths.CacheDBPath())
			return nil
		},
	})

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached assets older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openStore()
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")
			removed, err := db.PruneAssets(days)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d cached assets older than %d days\n", removed, days)
			return nil
		},
	}
	pruneCmd.Flags().Int("days", 30, "remove assets cached more than this many days ago")
	cacheCmd.AddCommand(pruneCmd)

	return cacheCmd
}
