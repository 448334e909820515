package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmzdev/tmz/internal/auth"
)

const interactiveLoginTimeout = 5 * time.Minute

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage credentials",
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show credential state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			state, bundle, err := a.authManager().Current()
			if err != nil {
				return err
			}
			fmt.Printf("state: %s\n", state)
			if bundle == nil {
				fmt.Println("no credentials stored - run 'tmz auth login'")
				return nil
			}
			fmt.Printf("user: %s\n", bundle.UserPrincipalName)
			fmt.Printf("tenant: %s\n", bundle.TenantID)
			expires := time.Unix(bundle.ExpiresAt, 0)
			fmt.Printf("expires: %s (%s)\n",
				expires.Format(time.RFC3339),
				formatRemaining(time.Until(expires)))
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Log in through a browser window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Println("opening browser for login...")
			login := auth.NewScriptLogin(a.logger)
			bundle, err := login.Login(cmd.Context(), false, interactiveLoginTimeout)
			if err != nil {
				return err
			}
			if err := a.authManager().StoreBundle(bundle); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", bundle.UserPrincipalName)
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.authManager().Clear(); err != nil {
				return err
			}
			fmt.Println("credentials removed")
			return nil
		},
	})

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Store manually extracted tokens",
		Long:  "Store tokens copied from the web client's local storage, for setups\nwhere the scripted browser login is unavailable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			skype, _ := cmd.Flags().GetString("skype-token")
			chat, _ := cmd.Flags().GetString("chat-token")
			graph, _ := cmd.Flags().GetString("graph-token")
			presence, _ := cmd.Flags().GetString("presence-token")

			bundle, err := a.authManager().Store(skype, chat, graph, presence)
			if err != nil {
				return err
			}
			fmt.Printf("stored credentials for %s (expires %s)\n",
				bundle.UserPrincipalName,
				time.Unix(bundle.ExpiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}
	storeCmd.Flags().String("skype-token", "", "access token for the skype API resource")
	storeCmd.Flags().String("chat-token", "", "access token for the chat aggregation resource")
	storeCmd.Flags().String("graph-token", "", "access token for the graph resource")
	storeCmd.Flags().String("presence-token", "", "access token for the presence resource")
	_ = storeCmd.MarkFlagRequired("skype-token")
	_ = storeCmd.MarkFlagRequired("chat-token")
	_ = storeCmd.MarkFlagRequired("graph-token")
	_ = storeCmd.MarkFlagRequired("presence-token")
	authCmd.AddCommand(storeCmd)

	return authCmd
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return "in " + d.Round(time.Minute).String()
}
