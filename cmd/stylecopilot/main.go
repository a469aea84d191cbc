package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	// earlyinit must be listed before anything that pulls in bubbletea so its
	// init() runs first and pre-sets lipgloss.SetHasDarkBackground, preventing
	// bubbletea's init() from sending an OSC 11 terminal colour query that
	// leaks into stdin on WSL2.
	_ "github.com/stylecopilot/stylecopilot/internal/earlyinit"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stylecopilot/stylecopilot/internal/action"
	"github.com/stylecopilot/stylecopilot/internal/chat"
	"github.com/stylecopilot/stylecopilot/internal/config"
	"github.com/stylecopilot/stylecopilot/internal/editor/local"
	"github.com/stylecopilot/stylecopilot/internal/logging"
	"github.com/stylecopilot/stylecopilot/internal/provider"
	"github.com/stylecopilot/stylecopilot/internal/telemetry"
	"github.com/stylecopilot/stylecopilot/internal/tui"
	"github.com/stylecopilot/stylecopilot/internal/workflow"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stylecopilot",
		Short: "StyleCopilot - custom AI actions and commands for your code",
		Long: `StyleCopilot routes your prompts and custom commands through a hosted
chat model and gates full-file rewrites behind a diff you accept or reject.
Actions and commands are prompt templates you configure yourself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	rootCmd.AddCommand(
		chatCmd(),
		styleCmd(),
		actionsCmd(),
		commandsCmd(),
		modelsCmd(),
		authCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and applies the logging setup.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	return cfg, nil
}

// buildClients assembles the completion backends available in this
// environment. An unauthenticated backend is simply absent; model selection
// treats that as "no model" downstream.
func buildClients(cfg *config.Config) []provider.Client {
	var clients []provider.Client
	if copilot, err := provider.NewCopilotClient(); err == nil {
		clients = append(clients, copilot)
	}
	if key := cfg.ResolveOpenAIKey(); key != "" {
		clients = append(clients, provider.NewOpenAIClient(key, cfg.OpenAIBaseURL))
	}
	return clients
}

func buildSink(cfg *config.Config) telemetry.Sink {
	if !cfg.Telemetry.Enabled {
		return telemetry.Nop{}
	}
	if cfg.Telemetry.Endpoint != "" {
		return telemetry.NewHTTPSink(cfg.Telemetry.Endpoint)
	}
	return telemetry.LogSink{}
}

func selector(cfg *config.Config) provider.Selector {
	sel := provider.DefaultSelector
	if cfg.Provider != "" {
		sel.Vendor = cfg.Provider
	}
	if cfg.Family != "" {
		sel.Family = cfg.Family
	}
	return sel
}

func requestOptions(cfg *config.Config) provider.Options {
	return provider.Options{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM, threading
// cancellation through the streaming calls.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// ---------------------------------------------------------------------------
// chat — the chat-participant surface
// ---------------------------------------------------------------------------

// cliStream streams markdown fragments to the terminal as they arrive and
// remembers everything for an optional pretty re-render at the end.
type cliStream struct {
	chat.CollectResponse
	out  *os.File
	dim  *color.Color
	live bool
}

func (s *cliStream) Progress(message string) {
	s.CollectResponse.Progress(message)
	s.dim.Fprintln(s.out, message)
}

func (s *cliStream) Markdown(fragment string) {
	s.CollectResponse.Markdown(fragment)
	if s.live {
		fmt.Fprint(s.out, fragment)
	}
}

func chatCmd() *cobra.Command {
	var filePath string
	var refs []string

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt through the chat surface (supports /action tokens)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			host := local.NewHost()
			handler := chat.NewHandler(
				cfg.Registry(),
				buildClients(cfg),
				host,
				buildSink(cfg),
				selector(cfg),
				requestOptions(cfg),
			)

			// On a terminal, buffer fragments and render the markdown once
			// at the end: glamour cannot reflow partially rendered output.
			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			stream := &cliStream{
				out:  os.Stdout,
				dim:  color.New(color.Faint),
				live: !interactive,
			}

			req := chat.Request{
				Prompt:     strings.Join(args, " "),
				ActivePath: filePath,
				Refs:       refs,
			}
			if err := handler.Handle(ctx, req, stream); err != nil {
				return err
			}

			text := stream.Text()
			if text == "" {
				return nil
			}
			if interactive {
				width := 100
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
					width = w
				}
				fmt.Print(tui.NewMarkdownRenderer(width).Render(text))
			} else {
				fmt.Println()
			}

			printFollowups(stream.Followups)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Active document to include in the conversation")
	cmd.Flags().StringArrayVarP(&refs, "ref", "r", nil, "Referenced document (repeatable, order preserved)")
	return cmd
}

func printFollowups(ups []action.Followup) {
	if len(ups) == 0 {
		return
	}
	dim := color.New(color.Faint)
	dim.Println("\nSuggestions:")
	for _, up := range ups {
		dim.Printf("  /%s — %s\n", up.Command, up.Label)
	}
}

// ---------------------------------------------------------------------------
// style — the generic editor command (pick a custom command, diff, apply)
// ---------------------------------------------------------------------------

func styleCmd() *cobra.Command {
	var commandID string

	cmd := &cobra.Command{
		Use:   "style <file>",
		Short: "Run a custom command against a file with diff-gated apply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			host := local.NewHost()
			registry := cfg.Registry()

			if len(registry.Commands()) == 0 {
				host.ShowInfo("No custom commands defined.")
				return nil
			}

			picked := commandID
			if picked == "" {
				var ok bool
				picked, ok = host.QuickPick(ctx, "Select a custom command", registry.CommandIDs())
				if !ok {
					return nil
				}
			}

			template, ok := registry.ResolveCommand(picked)
			if !ok {
				host.ShowInfo("No custom command found.")
				return nil
			}

			doc, err := host.OpenDocument(args[0])
			if err != nil {
				return err
			}

			runner := workflow.NewRunner(host, buildClients(cfg), buildSink(cfg), workflow.Options{
				Selector:                  selector(cfg),
				Request:                   requestOptions(cfg),
				FallbackEditOnStreamError: cfg.FallbackEditOnStreamError,
			})
			_, err = runner.Run(ctx, *template, doc)
			return err
		},
	}

	cmd.Flags().StringVarP(&commandID, "command", "c", "", "Command id to run without the picker")
	return cmd
}

// ---------------------------------------------------------------------------
// actions / commands / models — listing
// ---------------------------------------------------------------------------

func actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List configured chat actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			acts := cfg.Registry().Actions()
			if len(acts) == 0 {
				fmt.Println("No custom actions defined.")
				return nil
			}
			for _, a := range acts {
				fmt.Printf("/%s\t%s\n", a.ID, a.Label)
			}
			return nil
		},
	}
}

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List configured editor commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmds := cfg.Registry().Commands()
			if len(cmds) == 0 {
				fmt.Println("No custom commands defined.")
				return nil
			}
			for _, c := range cmds {
				fmt.Printf("%s\t%s\n", c.ID, c.Description)
			}
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models matching the configured selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			sel := selector(cfg)
			found := false
			for _, c := range buildClients(cfg) {
				models, err := c.SelectModels(ctx, sel)
				if err != nil {
					continue
				}
				for _, m := range models {
					found = true
					limit := ""
					if m.MaxInputTokens() > 0 {
						limit = fmt.Sprintf("\tmax input %d tokens", m.MaxInputTokens())
					}
					fmt.Printf("%s/%s%s\n", c.Vendor(), m.ID(), limit)
				}
			}
			if !found {
				fmt.Printf("No models available for %s/%s. Authenticate with 'stylecopilot auth login'.\n", sel.Vendor, sel.Family)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider authentication",
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate GitHub Copilot via the device flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := provider.CopilotLogin(os.Stdout); err != nil {
				return err
			}
			color.New(color.FgGreen).Println("✓ GitHub Copilot authenticated successfully.")
			return nil
		},
	}

	setKeyCmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store an OpenAI API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.PromptAPIKey("OpenAI API key")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("empty key")
			}
			creds, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			creds.OpenAIAPIKey = key
			if err := config.SaveCredentials(creds); err != nil {
				return err
			}
			color.New(color.FgGreen).Println("✓ API key saved.")
			return nil
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored Copilot credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := provider.RemoveCopilotToken(); err != nil {
				return err
			}
			fmt.Println("Copilot token removed.")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			copilot := "not authenticated"
			if provider.HasCopilotToken() {
				copilot = "authenticated"
			}
			openai := "no key"
			if cfg.ResolveOpenAIKey() != "" {
				openai = "key configured"
			}
			fmt.Printf("copilot: %s\nopenai:  %s\n", copilot, openai)
			return nil
		},
	}

	cmd.AddCommand(loginCmd, setKeyCmd, logoutCmd, statusCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// config / version
// ---------------------------------------------------------------------------

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stylecopilot %s (%s)\n", version, commit)
		},
	}
}
