package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tmzdev/tmz/internal/daemon"
	"github.com/tmzdev/tmz/internal/paths"
)

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the background sync daemon",
	}

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			pid, err := daemon.StartDetached(paths.PIDPath(), paths.LogPath(), []string{"daemon", "run"})
			if err != nil {
				return err
			}
			fmt.Printf("daemon started (pid %d)\n", pid)
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := daemon.Stop(paths.PIDPath()); err != nil {
				return err
			}
			fmt.Println("daemon stopped")
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			if err := daemon.Stop(paths.PIDPath()); err != nil {
				fmt.Printf("stop: %v\n", err)
			}
			pid, err := daemon.StartDetached(paths.PIDPath(), paths.LogPath(), []string{"daemon", "run"})
			if err != nil {
				return err
			}
			fmt.Printf("daemon started (pid %d)\n", pid)
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show daemon and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid := daemon.IsRunning(paths.PIDPath())
			switch {
			case running:
				fmt.Printf("daemon: running (pid %d)\n", pid)
			case pid != 0:
				fmt.Printf("daemon: not running (stale marker, pid %d)\n", pid)
			default:
				fmt.Println("daemon: not running")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			db, err := a.openStore()
			if err != nil {
				return err
			}

			for _, key := range []string{"last_sync_at", "last_refresh_at", "last_sync_conversations", "last_sync_messages"} {
				value, err := db.GetSyncState(key)
				if err != nil {
					return err
				}
				if value == "" {
					value = "-"
				}
				fmt.Printf("%s: %s\n", key, value)
			}
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(daemon.Module())
			app.Run()
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Install a user service that runs the daemon at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			path, err := daemon.InstallService(paths.LogPath())
			if err != nil {
				return err
			}
			fmt.Printf("service installed: %s\n", path)
			fmt.Println("activate it with your service manager (e.g. 'systemctl --user enable --now tmz')")
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Remove the user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := daemon.UninstallService()
			if err != nil {
				return err
			}
			fmt.Printf("service removed: %s\n", path)
			return nil
		},
	})

	return daemonCmd
}
