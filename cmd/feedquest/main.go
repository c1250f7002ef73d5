package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedquest",
		Short: "Follow sites and channels, keep a reading streak going",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(progressCmd())
	root.AddCommand(feedCmd())
	root.AddCommand(addCmd())
	root.AddCommand(readCmd())
	root.AddCommand(bookmarkCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func progressCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show level, streak, achievements and daily challenges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func feedCmd() *cobra.Command {
	var (
		kind       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the aggregated feed across all subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(kind, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by subscription kind (site or youtube)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func addCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Subscribe to a site feed or YouTube channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(args[0], kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "site", "subscription kind (site or youtube)")
	return cmd
}

func readCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "read <item-id>",
		Short: "Mark an item as read and record the progress event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(args[0], contentType)
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "news", "content type (news or videos)")
	return cmd
}

func bookmarkCmd() *cobra.Command {
	var (
		title       string
		itemURL     string
		contentType string
		remove      bool
	)

	cmd := &cobra.Command{
		Use:   "bookmark <item-id>",
		Short: "Bookmark an item (or remove the bookmark with --remove)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookmark(args[0], title, itemURL, contentType, remove)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "item title")
	cmd.Flags().StringVar(&itemURL, "url", "", "item url")
	cmd.Flags().StringVar(&contentType, "type", "news", "content type (news or videos)")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the bookmark instead")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local bookmarks and read markers to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync()
		},
	}
}

func loginCmd() *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Authenticate against the backend and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(args[0], register)
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "create a new account instead")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with background sync and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
