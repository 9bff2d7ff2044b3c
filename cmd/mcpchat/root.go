// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/convergent-analytics-ai-01/UWEPD/agents"
	"github.com/convergent-analytics-ai-01/UWEPD/azureagents"
	"github.com/convergent-analytics-ai-01/UWEPD/chat"
	"github.com/convergent-analytics-ai-01/UWEPD/config"
	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

type options struct {
	configPath string
	envFile    string
	credential string
	debug      bool

	newConversation bool
	conversationID  string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "mcpchat",
		Short: "Chat with an Azure AI agent that uses MCP tools",
		Long: `mcpchat runs a console conversation with an Azure AI Foundry agent.
The agent can call tools on the configured MCP servers; tools that require
confirmation are approved at the prompt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
	addGlobalFlags(cmd.PersistentFlags(), opts)
	addChatFlags(cmd.Flags(), opts)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume a conversation (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
	addChatFlags(chatCmd.Flags(), opts)

	cmd.AddCommand(chatCmd, newListCommand(opts), newShowCommand(opts), newDeleteCommand(opts))
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (.yaml, .yml, .json or .jsonc)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&opts.credential, "credential", "", "Azure credential: default, cli or developer")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging (also DEBUG=1)")
}

func addChatFlags(fs *pflag.FlagSet, opts *options) {
	fs.BoolVar(&opts.newConversation, "new", false, "start a new conversation without the resume menu")
	fs.StringVar(&opts.conversationID, "id", "", "resume the conversation with this id")
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			list, err := conversation.Summarize(cmd.Context(), env.store)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved conversations.")
				return nil
			}
			printSummaries(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			turns, err := env.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), turns)
			return nil
		},
	}
}

func newDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			if err := env.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s\n", args[0])
			return nil
		},
	}
}

// environment is what every subcommand shares.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	store  conversation.Store
}

func setup(cmd *cobra.Command, opts *options) (*environment, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.credential != "" {
		cfg.Credential = opts.credential
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.debug || os.Getenv("DEBUG") != "")
	slog.SetDefault(logger)
	return &environment{cfg: cfg, logger: logger, store: conversation.Open(cfg.Memory)}, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newCredential(kind string) (azcore.TokenCredential, error) {
	switch kind {
	case "", "default":
		return azidentity.NewDefaultAzureCredential(nil)
	case "cli":
		return azidentity.NewAzureCLICredential(nil)
	case "developer":
		return azidentity.NewAzureDeveloperCLICredential(nil)
	}
	return nil, fmt.Errorf("unknown credential %q (want default, cli or developer)", kind)
}

func runChat(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	env, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	if err := env.cfg.Validate(); err != nil {
		return err
	}
	cred, err := newCredential(env.cfg.Credential)
	if err != nil {
		return fmt.Errorf("create Azure credential: %w", err)
	}
	var clientOpts []azureagents.Option
	if env.cfg.APIVersion != "" {
		clientOpts = append(clientOpts, azureagents.WithAPIVersion(env.cfg.APIVersion))
	}
	client, err := azureagents.New(env.cfg.ProjectEndpoint, cred, clientOpts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	con := newConsole(cmd.InOrStdin(), out, isTerminal(cmd.InOrStdin()))

	mgrOpts, err := env.cfg.ManagerOptions()
	if err != nil {
		return err
	}
	mgrOpts = append(mgrOpts, agents.WithApprover(con), agents.WithLogger(env.logger))
	mgr := agents.NewManager(agents.LoggingService(client, env.logger), mgrOpts...)
	sess := chat.New(env.store, mgr, chat.WithLogger(env.logger))

	fmt.Fprintln(out, "\nAgent and Thread Info")
	for _, t := range mgr.Tools() {
		fmt.Fprintf(out, "MCP Server: %s at %s\n", t.Label, t.ServerURL)
	}

	id, err := pickConversation(ctx, con, sess, opts)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return con.loop(ctx, sess, id)
}

// pickConversation resolves the conversation to use from the flags or the
// resume menu, creating a new one when nothing is resumed.
func pickConversation(ctx context.Context, con *console, sess *chat.Session, opts *options) (string, error) {
	id := opts.conversationID
	if id != "" {
		if _, err := sess.History(ctx, id); err != nil {
			return "", fmt.Errorf("resume %s: %w", id, err)
		}
	} else if !opts.newConversation {
		list, err := sess.Conversations(ctx)
		if err != nil {
			return "", err
		}
		if id, err = con.choose(ctx, list); err != nil {
			return "", err
		}
	}

	if id != "" {
		fmt.Fprintf(con.out, "Resuming conversation, ID: %s\n", id)
		return id, nil
	}
	id, err := sess.Start(ctx)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(con.out, "Created new conversation, ID: %s\n", id)
	return id, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
