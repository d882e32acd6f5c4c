package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var configPath string

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fileflexor: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:   "fileflexor",
		Short: "Upload, compress, convert and download files",
		Long: `FileFlexor accepts PDF, DOCX, PPTX, JPEG and PNG uploads, compresses images and PDFs,
converts images to WebP or PDF and serves the results for download. Stored files are
deleted automatically once they expire. Without a subcommand it runs the HTTP server.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yml", "Path to the YAML config file")
	cmd.AddCommand(
		serve,
		newSweepCmd(),
		newEventsCmd(),
	)
	return cmd
}
