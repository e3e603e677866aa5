package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/api"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// googleLoginTimeout bounds how long login --google waits for the browser.
const googleLoginTimeout = 5 * time.Minute

var (
	loginUsername string
	loginPassword string
	loginGoogle   bool
	loginNoBrowse bool

	registerName     string
	registerEmail    string
	registerUsername string
	registerPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a username and password, or with Google",
	Long: `Sign in to the task API. The credential is stored in the credentials
directory and refreshed automatically when it expires.

Examples:
  todoctl login -u alice            # prompts for the password
  todoctl login --google            # opens the browser for Google sign-in`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		a.session.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE:  runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE:  runStatus,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username or email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "sign in with Google")
	loginCmd.Flags().BoolVar(&loginNoBrowse, "no-browser", false, "print the Google sign-in URL instead of opening it")

	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "email address")
	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "username")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "password (prompted when omitted)")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	open := auth.OpenBrowser
	if loginNoBrowse {
		open = nil
	}
	a, err := newAppWithOpener(cfg, open)
	if err != nil {
		return err
	}
	if loginGoogle {
		return runGoogleLogin(cmd, a)
	}

	if loginUsername == "" {
		return errors.New("--username is required")
	}
	password, err := passwordOrPrompt(cmd, loginPassword)
	if err != nil {
		return err
	}

	a.session.Login(cmd.Context(), loginUsername, password)
	state := a.session.State()
	if state.ErrorLogIn {
		return errors.New(state.ErrorMessage)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful!")
	return nil
}

func runGoogleLogin(cmd *cobra.Command, a *app) error {
	srv := api.NewServer(cfg, a.session, a.tasks)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	target, err := a.session.GoogleAuthenticate()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nVisit the following URL to authenticate:\n%s\n\n", target)
	fmt.Fprintln(out, "Waiting for authentication callback...")

	ctx, cancel := context.WithTimeout(cmd.Context(), googleLoginTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.WaitForGoogleLogin(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("callback server: %w", err)
		}
		return errors.New("callback server stopped")
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("authentication timed out")
		}
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Authentication successful!")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	password, err := passwordOrPrompt(cmd, registerPassword)
	if err != nil {
		return err
	}

	ok := a.session.Register(cmd.Context(), auth.RegisterRequest{
		Name:     registerName,
		Email:    registerEmail,
		Username: registerUsername,
		Password: password,
	})
	if !ok {
		return errors.New(a.session.State().ErrorRegister)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. Run 'todoctl login -u %s' to sign in.\n", registerUsername, registerUsername)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	creds, err := a.store.Load()
	if err != nil {
		log.Warnf("Failed to read credentials: %v", err)
	}
	if creds == nil {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	fmt.Fprintf(out, "Logged in (credentials at %s)\n", a.store.Path())
	if tokenType := creds.Get("token_type").String(); tokenType != "" {
		fmt.Fprintf(out, "Token type: %s\n", tokenType)
	}
	if expiry, ok := creds.AccessExpiry(); ok {
		if remaining := time.Until(expiry); remaining > 0 {
			fmt.Fprintf(out, "Access token expires in %s\n", remaining.Round(time.Second))
		} else {
			fmt.Fprintln(out, "Access token expired; it will be refreshed on the next request")
		}
	}
	return nil
}

func passwordOrPrompt(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	if v := os.Getenv("TODOCTL_PASSWORD"); v != "" {
		return v, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

// readPassword reads without echo from a terminal, or a single line from
// piped input.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
