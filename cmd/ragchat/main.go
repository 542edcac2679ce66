package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/server"
	"github.com/siherrmann/ragchat/tui"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your documents",
		Long:  "Ingests PDF, text and markdown documents into a vector index and answers questions from them with a chat model. Answers are checked against a denylist before delivery.",
		// Errors are logged once by main
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ragchat.yaml", "Path to YAML config file (defaults are used if it does not exist)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")

	open := func(ctx context.Context, quiet bool) (*ragchat.Chatbot, *slog.Logger, error) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := helper.NewLogger(level)
		// Log lines would break the terminal chat layout
		if quiet {
			logger = slog.New(helper.NewPrettyHandler(io.Discard, helper.PrettyHandlerOptions{}))
		}
		chatbot, err := openChatbot(ctx, configPath, logger)
		return chatbot, logger, err
	}

	rootCmd.AddCommand(createServeCommand(open))
	rootCmd.AddCommand(createIngestCommand(open))
	rootCmd.AddCommand(createAskCommand(open))
	rootCmd.AddCommand(createChatCommand(open))
	rootCmd.AddCommand(createClearCommand(open))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// openChatbot fails on configuration errors before anything is served.
func openChatbot(ctx context.Context, configPath string, logger *slog.Logger) (*ragchat.Chatbot, error) {
	config, err := helper.LoadConfiguration(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	chatbot, err := ragchat.NewChatbotFromConfiguration(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating chatbot: %w", err)
	}
	return chatbot, nil
}

// openFunc creates the chatbot and the logger it was created with.
// quiet discards log output.
type openFunc func(ctx context.Context, quiet bool) (*ragchat.Chatbot, *slog.Logger, error)

// closeChatbot joins the close error into the command error.
func closeChatbot(chatbot *ragchat.Chatbot, err *error) {
	if closeErr := chatbot.Close(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("error closing chatbot: %w", closeErr))
	}
}

func createServeCommand(open openFunc) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat API",
		Long:  "Start a JSON API to upload documents, ask questions and manage chat sessions.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			chatbot, logger, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeChatbot(chatbot, &err)

			if address == "" {
				address = chatbot.Config.Server.Address
			}

			if err := server.New(chatbot, logger).ListenAndServe(ctx, address); err != nil {
				return fmt.Errorf("error running server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides server.address)")

	return cmd
}

func createIngestCommand(open openFunc) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the documents directory into the index",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := context.Background()
			chatbot, _, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeChatbot(chatbot, &err)

			report, err := chatbot.IngestAndIndex(ctx, dir)
			if err != nil {
				return fmt.Errorf("error ingesting documents: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d chunks from %d files in %s\n", report.Chunks, len(report.Files), report.Duration)
			for _, skipped := range report.Skipped {
				fmt.Fprintf(out, "Skipped %s\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Documents directory (overrides ingestion.docs_directory)")

	return cmd
}

func createAskCommand(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := context.Background()
			chatbot, _, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeChatbot(chatbot, &err)

			fmt.Fprintln(cmd.OutOrStdout(), chatbot.Ask(ctx, nil, strings.Join(args, " ")))
			return nil
		},
	}

	return cmd
}

func createChatCommand(open openFunc) *cobra.Command {
	var skipIngest bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		Long:  "Ingest the documents directory and start an interactive chat in the terminal.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := context.Background()
			chatbot, _, err := open(ctx, true)
			if err != nil {
				return err
			}
			defer closeChatbot(chatbot, &err)

			sess := chatbot.NewSession()
			status := "Ready."
			if !skipIngest {
				report, err := chatbot.IngestAndIndex(ctx, "")
				if err != nil {
					return fmt.Errorf("error ingesting documents: %w", err)
				}
				if report.Chunks == 0 {
					status = fmt.Sprintf("No documents found in %s. Add files and type /ingest.", chatbot.Config.Ingestion.DocsDirectory)
				} else {
					sess.MarkDocumentsProcessed()
					status = fmt.Sprintf("Indexed %d chunks from %d files.", report.Chunks, len(report.Files))
				}
			}

			if _, err := tea.NewProgram(tui.New(chatbot, sess, status), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("error running terminal chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "Do not ingest the documents directory on startup")

	return cmd
}

func createClearCommand(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all chunks from the index",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := context.Background()
			chatbot, _, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer closeChatbot(chatbot, &err)

			if err := chatbot.ClearIndex(ctx); err != nil {
				return fmt.Errorf("error clearing index: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Index cleared")
			return nil
		},
	}

	return cmd
}
