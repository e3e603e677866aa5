package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/config"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/executor"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
)

var (
	configPath string
	logLevel   string
	debug      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "todoctl",
	Short: "Manage your day tasks from the terminal",
	Long: `todoctl signs in to the task API, keeps the session fresh and
lets you list, add, check off, edit, reorder and delete tasks by day.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if debug {
			loaded.Debug = true
		}
		cfg = loaded
		return setupLogging(cfg)
	},
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "todoctl version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to a process exit status.
func exitCode(err error) int {
	if errors.Is(err, auth.ErrNotAuthenticated) || auth.IsRefreshFailure(err) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

func setupLogging(c *config.Config) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	if c.Debug {
		log.SetLevel(log.DebugLevel)
		return nil
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".todoctl", "config.yaml")
}

// app is the wired client stack shared by all commands.
type app struct {
	store   *auth.FileStore
	client  *executor.Client
	session *auth.Session
	tasks   *tasks.Client
	tracker analytics.Tracker
}

func newApp(c *config.Config) (*app, error) {
	return newAppWithOpener(c, auth.OpenBrowser)
}

func newAppWithOpener(c *config.Config, open auth.BrowserOpener) (*app, error) {
	client, err := executor.NewClient(executor.Options{
		BaseURL:  c.APIBaseURL,
		ProxyURL: c.ProxyURL,
		Timeout:  c.Timeout,
	})
	if err != nil {
		return nil, err
	}

	store := auth.NewFileStore(c.CredentialsDir)

	tracker := analytics.LogTracker{}
	session := auth.NewSession(auth.SessionConfig{
		Client:  client,
		Store:   store,
		Tracker: tracker,
		Google: auth.GoogleConfig{
			ClientID:    c.GoogleClientID,
			RedirectURL: c.CallbackURL(),
			Open:        open,
		},
	})
	client.Use(session.Policy())
	session.Restore()

	return &app{
		store:   store,
		client:  client,
		session: session,
		tasks:   tasks.NewClient(client, store),
		tracker: tracker,
	}, nil
}

// requireLogin fails fast when no credential is stored.
func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("%w: run 'todoctl login' first", auth.ErrNotAuthenticated)
	}
	return nil
}
