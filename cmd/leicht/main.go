package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ramptix/leicht/internal/cli"
	"github.com/ramptix/leicht/internal/config"
	"github.com/ramptix/leicht/internal/session"
	"github.com/ramptix/leicht/pkg/conditional"
	"github.com/ramptix/leicht/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	provider   string
	model      string
	apiKey     string
	baseURL    string
	verbose    bool
	noColor    bool

	noStream    bool
	noTools     bool
	resumeID    string
	system      string
	temperature float64

	checkPrompt string
	checkFillTo string

	fillPairs    []string
	sessionLimit int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "leicht",
		Short:         "A lightweight LLM assistant with text-based tool calling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: first of "+strings.Join(config.Locations(), ", ")+")")
	flags.StringVar(&provider, "provider", "", "LLM provider: openai, groq or anthropic")
	flags.StringVar(&model, "model", "", "Model to use")
	flags.StringVar(&apiKey, "api-key", "", "API key (default: the provider's environment variable)")
	flags.StringVar(&baseURL, "base-url", "", "API base URL")
	flags.BoolVar(&verbose, "verbose", false, "Enable verbose output (debug mode)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant; without a message an interactive session starts",
		RunE:  runChat,
	}
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for complete replies instead of streaming")
	chatCmd.Flags().BoolVar(&noTools, "no-tools", false, "Do not register any tools")
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Continue a stored session (id or unique prefix)")
	chatCmd.Flags().StringVar(&system, "system", "", "System prompt or prompt reference")
	chatCmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")

	checkCmd := &cobra.Command{
		Use:   "check <text>",
		Short: "Ask the model whether text satisfies a condition; prints true or false",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVar(&checkPrompt, "prompt", "", "Condition prompt or prompt reference")
	checkCmd.Flags().StringVar(&checkFillTo, "fill-to", "text", "Placeholder receiving the text")
	checkCmd.Flags().StringArrayVar(&fillPairs, "fill", nil, "Additional placeholder value as key=value")
	_ = checkCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(chatCmd, checkCmd, promptsCommand(), sessionsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *logger.Logger {
	level := logger.LevelInfo
	if verbose {
		level = logger.LevelDebug
	}
	log := logger.NewLogger(os.Stderr, level)
	log.SetColorMode(!noColor)
	return log
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, err
	}

	if provider != "" {
		cfg.Provider = provider
		if apiKey == "" && cfg.APIKey != "" {
			// A key from the config belongs to the configured provider.
			cfg.APIKey = ""
		}
	}
	if model != "" {
		cfg.Model = model
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg, cfg.Validate()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if system != "" {
		cfg.System = system
	}
	if cmd.Flags().Changed("temperature") {
		cfg.Sampling.Temperature = &temperature
	}

	sender, err := cli.NewSender(cfg)
	if err != nil {
		return err
	}
	log.Debug("Using %s (model: %s)", sender.Provider(), sender.Model())

	in := bufio.NewReader(os.Stdin)
	app, err := cli.NewApp(ctx, cfg, log, sender, cli.AppOptions{
		NoTools:  noTools,
		ResumeID: resumeID,
		In:       in,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	out := cli.NewStreamingWriter(os.Stdout)
	out.SetColorMode(!noColor)
	chat := cli.NewChat(app.Assistant, out,
		cli.WithStreaming(!noStream),
		cli.WithSessions(app.Sessions, app.SessionID, sender.Provider(), sender.Model()),
		cli.WithChatLogger(log),
	)

	if len(args) > 0 {
		err = chat.Ask(ctx, strings.Join(args, " "))
	} else {
		err = chat.Loop(ctx, in)
	}
	if id := chat.SessionID(); id != "" {
		log.Debug("Session %s", id)
	}
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sender, err := cli.NewSender(cfg)
	if err != nil {
		return err
	}
	fill, err := parseFill(fillPairs)
	if err != nil {
		return err
	}
	for k, v := range cfg.Prompts.Fill {
		if _, ok := fill[k]; !ok {
			fill[k] = v
		}
	}

	backend, err := cli.NewBackend(cfg, sender, newLogger())
	if err != nil {
		return err
	}

	check := conditional.New(backend, checkPrompt, checkFillTo,
		conditional.WithFill(fill),
		conditional.WithPrompts(cli.NewPromptStore(cfg.Prompts)),
	)
	ok, err := check.Check(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

func promptsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage cached prompt templates",
	}

	getCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a template, downloading it if it is not cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fill, err := parseFill(fillPairs)
			if err != nil {
				return err
			}
			text, err := cli.NewPromptStore(cfg.Prompts).Get(cmd.Context(), args[0], fill)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	getCmd.Flags().StringArrayVar(&fillPairs, "fill", nil, "Placeholder value as key=value")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names, err := cli.NewPromptStore(cfg.Prompts).Cached()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Download every cached template again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names, err := cli.NewPromptStore(cfg.Prompts).UpdateAll(cmd.Context())
			for _, name := range names {
				fmt.Println("updated", name)
			}
			return err
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the template cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cli.NewPromptStore(cfg.Prompts).ClearCache()
		},
	}

	cmd.AddCommand(getCmd, listCmd, updateCmd, clearCmd)
	return cmd
}

func sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), sessionLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tMODEL\tMESSAGES\tTITLE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s/%s\t%d\t%s\n", shortID(s.ID), s.UpdatedAt.Local().Format(time.DateTime), s.Provider, s.Model, s.Messages, s.Title)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&sessionLimit, "limit", 20, "Maximum number of sessions")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msgs, err := store.Messages(cmd.Context(), sess.ID)
			if err != nil {
				return err
			}

			out := cli.NewStreamingWriter(os.Stdout)
			out.SetColorMode(!noColor)
			out.WriteLine(fmt.Sprintf("%s  %s/%s  %s", sess.ID, sess.Provider, sess.Model, sess.CreatedAt.Local().Format(time.DateTime)))
			cli.PrintMessages(out, msgs)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessions()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), sess.ID)
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}

func openSessions() (*session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := cli.OpenSessions(cfg.Session)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("sessions are disabled in the config")
	}
	return store, nil
}

func parseFill(pairs []string) (map[string]string, error) {
	fill := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --fill %q (expected key=value)", pair)
		}
		fill[k] = v
	}
	return fill, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
