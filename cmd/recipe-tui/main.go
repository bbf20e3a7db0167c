// Package main provides a terminal front end for the recipe full view
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alchemorsel/recipeview/internal/application/recipeview"
	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/alchemorsel/recipeview/internal/infrastructure/http/webserver"
	"github.com/alchemorsel/recipeview/internal/infrastructure/tui"
	"github.com/alchemorsel/recipeview/pkg/logger"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	apiURL     string
	token      string
	userID     string
	userName   string
	email      string
	password   string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:          "recipeview",
	Short:        "Browse a recipe and its comments in the terminal",
	SilenceUsage: true,
}

var showCmd = &cobra.Command{
	Use:   "show [recipe-id]",
	Short: "Open the full view of one recipe",
	Long: `Loads the recipe and its comments from the API backend and opens an
interactive view.

Signed-in users can comment (tab, then ctrl+s). Owners can delete (d).

Example:
  recipeview show 42 --email ada@example.com --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file (logging is off otherwise)")

	showCmd.Flags().StringVar(&token, "token", "", "Access token of the signed-in user")
	showCmd.Flags().StringVar(&userID, "user-id", "", "ID of the signed-in user")
	showCmd.Flags().StringVar(&userName, "user-name", "", "Display name of the signed-in user")
	showCmd.Flags().StringVar(&email, "email", "", "Sign in with this email")
	showCmd.Flags().StringVar(&password, "password", "", "Password used with --email")
	showCmd.MarkFlagsRequiredTogether("email", "password")
	showCmd.MarkFlagsMutuallyExclusive("email", "token")

	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := webserver.NewAPIClient(cfg, log, nil)
	current, err := signIn(ctx, client)
	if err != nil {
		return err
	}

	prompter := tui.NewPrompter()
	navigator := &tui.ProgramNavigator{}

	view := recipeview.New(args[0], current, client.ForToken(token), client.ForToken(token),
		recipeview.WithLogger(log),
		recipeview.WithConfirmer(prompter),
		recipeview.WithNavigator(navigator),
		recipeview.WithSettings(cfg.ViewSettings()),
	)
	defer view.Close()

	model := tui.NewModel(ctx, view, prompter, tui.DefaultStyles())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	navigator.Attach(program)

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("recipe view failed: %w", err)
	}

	if m, ok := final.(tui.Model); ok && m.NavigatedTo() != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Recipe deleted. Continue at %s\n", m.NavigatedTo())
	}
	return nil
}

// signIn resolves the current user from --email/--password or --token.
// It returns nil for anonymous browsing.
func signIn(ctx context.Context, client *webserver.APIClient) (*user.CurrentUser, error) {
	if email != "" {
		resp, err := client.Login(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("sign in failed: %w", err)
		}
		token = resp.AccessToken
		return &user.CurrentUser{ID: resp.User.ID, Name: resp.User.Name}, nil
	}

	if token == "" {
		return nil, nil
	}
	if userID == "" {
		return nil, errors.New("--user-id is required with --token")
	}
	return &user.CurrentUser{ID: userID, Name: userName}, nil
}

// newLogger logs to --log-file. The terminal belongs to the program.
// The returned func flushes the logger and closes the file.
func newLogger() (*zap.Logger, func(), error) {
	if logFile == "" {
		return zap.NewNop(), func() {}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  logLevel,
		Format: "json",
		Output: zapcore.AddSync(f),
	})
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return log.Logger, func() {
		_ = log.Sync()
		_ = f.Close()
	}, nil
}
