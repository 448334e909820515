package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmzdev/tmz/internal/daemon"
	"github.com/tmzdev/tmz/internal/resolve"
	"github.com/tmzdev/tmz/internal/store"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
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

			sched := daemon.NewScheduler(daemon.Config{
				TopConversations:        a.cfg.Sync.TopConversations,
				MessagesPerConversation: a.cfg.Sync.MessagesPerConversation,
			}, a.authManager(), a.client(), db, a.logger)
			if err := sched.SyncOnce(cmd.Context()); err != nil {
				return err
			}

			stats, err := db.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("synced: %d conversations, %d messages cached\n",
				stats.Conversations, stats.Messages)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached conversations by recent activity",
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
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")

			convs, err := db.ListConversations(limit)
			if err != nil {
				return err
			}
			shown := 0
			for _, c := range convs {
				if kind != "" && c.Kind != kind {
					continue
				}
				preview := truncate(strings.ReplaceAll(c.LastMessagePreview, "\n", " "), 60)
				fmt.Printf("%-19s %-9s %-30s %s\n",
					formatTime(c.LastActivity), c.Kind, truncate(c.DisplayName, 30), preview)
				shown++
			}
			if shown == 0 {
				fmt.Println("no cached conversations - run 'tmz sync' first")
			}
			return nil
		},
	}
	listCmd.Flags().IntP("limit", "n", 50, "maximum conversations to show")
	listCmd.Flags().StringP("kind", "k", "", "only show this conversation kind (oneToOne, group, channel, meeting)")
	return listCmd
}

func newReadCmd() *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read [target]",
		Short: "Show recent messages of a conversation",
		Long:  "Show recent cached messages of a conversation. Without a target, shows\nthe latest messages across your most recently active conversations.",
		Args:  cobra.MaximumNArgs(1),
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
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")

			if len(args) == 0 {
				return printLatest(db, limit)
			}

			id, err := resolveTarget(a, args[0], kind)
			if err != nil {
				return err
			}
			msgs, err := db.GetMessages(id, limit)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("no cached messages - the daemon may not have synced this conversation yet")
				return nil
			}
			if conv, err := db.GetConversation(id); err == nil && conv != nil {
				fmt.Printf("== %s ==\n", conv.DisplayName)
			}
			for _, m := range msgs {
				printMessage(m)
			}
			return nil
		},
	}
	readCmd.Flags().IntP("limit", "n", 20, "maximum messages to show")
	readCmd.Flags().StringP("kind", "k", "", "restrict target matching to this conversation kind")
	return readCmd
}

func newSendCmd() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send <target> <message...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			kind, _ := cmd.Flags().GetString("kind")
			id, err := resolveTarget(a, args[0], kind)
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")
			msgID, err := a.client().SendMessage(cmd.Context(), id, text)
			if err != nil {
				return err
			}
			fmt.Printf("sent (%s)\n", msgID)
			return nil
		},
	}
	sendCmd.Flags().StringP("kind", "k", "", "restrict target matching to this conversation kind")
	return sendCmd
}

func newSendFileCmd() *cobra.Command {
	sendFileCmd := &cobra.Command{
		Use:   "send-file <target> <path>",
		Short: "Send a file attachment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			kind, _ := cmd.Flags().GetString("kind")
			id, err := resolveTarget(a, args[0], kind)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			fileName := filepath.Base(args[1])
			msgID, err := a.client().SendFile(cmd.Context(), id, fileName, data)
			if err != nil {
				return err
			}
			fmt.Printf("sent %s (%d bytes, %s)\n", fileName, len(data), msgID)
			return nil
		},
	}
	sendFileCmd.Flags().StringP("kind", "k", "", "restrict target matching to this conversation kind")
	return sendFileCmd
}

func newSearchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search cached messages",
		Args:  cobra.MinimumNArgs(1),
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
			limit, _ := cmd.Flags().GetInt("limit")
			in, _ := cmd.Flags().GetString("in")
			query := strings.Join(args, " ")

			var hits []store.SearchHit
			if in != "" {
				id, err := resolveTarget(a, in, "")
				if err != nil {
					return err
				}
				hits, err = db.SearchInConversation(query, id, limit)
				if err != nil {
					return err
				}
			} else {
				hits, err = db.Search(query, limit)
				if err != nil {
					return err
				}
			}

			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("[%s] %s | %s: %s\n",
					formatTime(h.Message.ComposeTime),
					truncate(h.ConversationName, 25),
					h.Message.SenderName,
					strings.ReplaceAll(h.Message.BodyPlain, "\n", " "))
			}
			return nil
		},
	}
	searchCmd.Flags().IntP("limit", "n", 20, "maximum hits to show")
	searchCmd.Flags().String("in", "", "restrict search to one conversation (alias, name, or id)")
	return searchCmd
}

func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download an attachment, caching it locally",
		Long:  "Download a message attachment by its object URL. Downloads go through\nthe local asset cache, so repeated fetches do not hit the network.",
		Args:  cobra.ExactArgs(1),
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
			assetURL := args[0]

			data, contentType, err := db.GetAsset(assetURL)
			if err != nil {
				return err
			}
			if data == nil {
				data, contentType, err = a.client().DownloadAsset(cmd.Context(), assetURL)
				if err != nil {
					return err
				}
				if err := db.CacheAsset(assetURL, data, contentType); err != nil {
					return err
				}
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0600); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes, %s)\n", out, len(data), contentType)
			return nil
		},
	}
	fetchCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	return fetchCmd
}

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <query>",
		Short: "Find conversations by name, member, or id fragment",
		Args:  cobra.MinimumNArgs(1),
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
			matches, err := db.FindConversation(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, c := range matches {
				fmt.Printf("%-9s %-30s %s\n", c.Kind, truncate(c.DisplayName, 30), c.ID)
			}
			return nil
		},
	}
}

// resolveTarget maps a user-supplied target to a conversation id, printing
// candidate matches when the target is ambiguous.
func resolveTarget(a *app, target, kind string) (string, error) {
	db, err := a.openStore()
	if err != nil {
		return "", err
	}
	id, err := resolve.New(a.cfg, db).Resolve(target, kind)
	if err != nil {
		var amb *resolve.AmbiguousError
		if errors.As(err, &amb) {
			fmt.Fprintln(os.Stderr, "matches:")
			for _, c := range amb.Candidates {
				fmt.Fprintf(os.Stderr, "  %-9s %-30s %s\n", c.Kind, truncate(c.DisplayName, 30), c.ID)
			}
		}
		return "", err
	}
	return id, nil
}

func printLatest(db *store.DB, perConv int) error {
	groups, err := db.LatestAcrossConversations(5, perConv)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("no cached messages - run 'tmz sync' first")
		return nil
	}
	for _, g := range groups {
		fmt.Printf("== %s ==\n", g.Conversation.DisplayName)
		for _, m := range g.Messages {
			printMessage(m)
		}
		fmt.Println()
	}
	return nil
}

func printMessage(m store.Message) {
	sender := m.SenderName
	if m.IsSelf {
		sender = "me"
	}
	body := strings.TrimSpace(m.BodyPlain)
	if body == "" {
		body = "[" + m.MessageType + "]"
	}
	fmt.Printf("[%s] %s: %s\n", formatTime(m.ComposeTime), sender, body)
}

// formatTime renders an ISO-8601 timestamp in local time, falling back to
// the raw string when it doesn't parse.
func formatTime(iso string) string {
	if iso == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
