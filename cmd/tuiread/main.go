// Package main provides the CLI entrypoint for tuiread.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuiread/internal/config"
	"github.com/verte-zerg/tuiread/internal/gateway"
	"github.com/verte-zerg/tuiread/internal/identity"
	"github.com/verte-zerg/tuiread/internal/idle"
	"github.com/verte-zerg/tuiread/internal/model"
	"github.com/verte-zerg/tuiread/internal/reconcile"
	"github.com/verte-zerg/tuiread/internal/session"
	"github.com/verte-zerg/tuiread/internal/stats"
	"github.com/verte-zerg/tuiread/internal/store"
	"github.com/verte-zerg/tuiread/internal/tui"
	"github.com/verte-zerg/tuiread/internal/workspace"
)

const (
	defaultServer      = "http://localhost:8000"
	defaultWPM         = 300
	defaultIdleMinutes = 30
	defaultStatsDays   = 30
)

var (
	serverURL   string
	readerWPM   int
	idleMinutes int
	customOnly  bool

	loginEmail    string
	registerEmail string
	registerName  string

	statsDays int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuiread",
		Short:         "TUI speed-reading trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runWorkspaceCmd,
	}

	rootCmd.Flags().StringVar(&serverURL, "server", defaultServer, "gateway base URL")
	rootCmd.Flags().IntVar(&readerWPM, "wpm", defaultWPM, "initial reader speed (words per minute)")
	rootCmd.Flags().IntVar(&idleMinutes, "timeout", defaultIdleMinutes, "idle sign-out timeout in minutes (15, 30, or 60)")
	rootCmd.Flags().BoolVar(&customOnly, "remote-custom", false, "persist custom text sessions on the gateway")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runWorkspaceCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Server.BaseURL)
	applyIntConfig(cmd, "wpm", &readerWPM, fileCfg.Reader.WPM)
	applyIntConfig(cmd, "timeout", &idleMinutes, fileCfg.Idle.TimeoutMinutes)
	applyBoolConfig(cmd, "remote-custom", &customOnly, fileCfg.Reader.CustomOnly)

	if readerWPM <= 0 {
		return fmt.Errorf("--wpm must be > 0")
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	// A timeout chosen inside the TUI persists in prefs and outranks
	// the config file; an explicit flag outranks both.
	if !cmd.Flags().Changed("timeout") {
		if v, perr := st.GetPref(context.Background(), "idle_timeout_minutes"); perr == nil && v != "" {
			if minutes, aerr := strconv.Atoi(v); aerr == nil {
				if _, terr := idleTimeout(minutes); terr == nil {
					idleMinutes = minutes
				}
			}
		}
	}
	timeout, err := idleTimeout(idleMinutes)
	if err != nil {
		return err
	}

	gw := gateway.NewClient(serverURL)
	windows := workspace.NewManager()
	id := identity.NewContext()

	var sessions *session.Store
	opts := []session.Option{session.WithReaderWPM(readerWPM)}
	if customOnly {
		opts = append(opts, session.WithCustomViaGateway())
	}
	opts = append(opts, session.WithAuthFailureHook(func() {
		userID := id.UserID()
		id.SignOut(identity.ReasonExpired)
		sessions.Wipe(userID)
	}))
	sessions = session.NewStore(gw, windows, opts...)
	engine := reconcile.NewEngine(gw, sessions, id)
	monitor := idle.NewMonitor(timeout)

	id.OnSignOut(func(reason string) {
		monitor.Suspend()
		if err := os.Remove(config.DefaultTokenPath()); err != nil && !os.IsNotExist(err) {
			logErrf("failed to drop cached token: %v\n", err)
		}
	})

	if err := restoreWorkspace(st, sessions, windows); err != nil {
		logErrf("failed to restore workspace: %v\n", err)
	}
	signInFromCache(gw, id, sessions, st)

	ui := tui.NewModel(tui.Deps{
		Sessions: sessions,
		Windows:  windows,
		Engine:   engine,
		Identity: id,
		Idle:     monitor,
		Gateway:  gw,
		DB:       st,
	})
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// restoreWorkspace loads the persisted snapshot into the in-memory
// stores.
func restoreWorkspace(st *store.Store, sessions *session.Store, windows *workspace.Manager) error {
	snap, err := st.LoadSnapshot(context.Background())
	if err != nil {
		return err
	}
	sessions.Restore(snap.Sessions, snap.Folders, snap.Projects)
	windows.Restore(snap.Windows, snap.Focused)
	return nil
}

// signInFromCache resumes the previous session when a still-valid token
// was cached. An expired token is dropped.
func signInFromCache(gw *gateway.Client, id *identity.Context, sessions *session.Store, st *store.Store) {
	token, err := loadToken()
	if err != nil || token == "" {
		return
	}
	probe := identity.NewContext()
	probe.SignIn("", token)
	if probe.Expired(time.Now()) {
		logErrf("cached token expired; run: tuiread login\n")
		if err := os.Remove(config.DefaultTokenPath()); err != nil && !os.IsNotExist(err) {
			logErrf("failed to drop cached token: %v\n", err)
		}
		return
	}
	user, err := gw.CurrentUser(context.Background(), token)
	if err != nil {
		logErrf("failed to resume session: %v\n", err)
		return
	}
	id.SignIn(user.ID, token)
	if agg, err := st.LoadAggregate(context.Background(), user.ID); err == nil && agg != nil {
		sessions.SetAggregate(user.ID, agg)
	}
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the access token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "gateway base URL")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	if loginEmail == "" {
		return fmt.Errorf("--email is required")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	gw := gateway.NewClient(serverURL)
	tok, err := gw.Login(context.Background(), loginEmail, password)
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}
	if err := saveToken(tok.AccessToken); err != nil {
		return err
	}
	user, err := gw.CurrentUser(context.Background(), tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	cmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	cmd.Flags().StringVar(&registerName, "name", "", "full name")
	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "gateway base URL")
	return cmd
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	if registerEmail == "" {
		return fmt.Errorf("--email is required")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	gw := gateway.NewClient(serverURL)
	user, err := gw.Register(context.Background(), registerEmail, password, registerName)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run: tuiread login --email %s\n", user.Email, user.Email); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the cached access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.Remove(config.DefaultTokenPath()); err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return fmt.Errorf("failed to drop token: %w", err)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reading stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "trailing window in days")
	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "gateway base URL")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be > 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workspace: %w", err)
	}

	var agg *model.AggregateStats
	token, _ := loadToken()
	if token != "" {
		gw := gateway.NewClient(serverURL)
		fetched, err := gw.FetchStats(ctx, token)
		if err != nil {
			logErrf("failed to fetch remote stats, using local data: %v\n", err)
		} else {
			agg = &fetched
		}
	}

	sum := stats.Summarize(snap.Sessions, statsDays, time.Now())
	return stats.RenderReport(cmd.OutOrStdout(), sum, agg, stats.TerminalWidth())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuiread configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# base-url = %q

[reader]
# wpm = %d               # Initial reader speed
# custom-only = false    # Persist custom text sessions on the gateway

[idle]
# timeout-minutes = %d   # Idle sign-out timeout (15, 30, or 60)
`,
		defaultServer,
		defaultWPM,
		defaultIdleMinutes,
	)
}

func idleTimeout(minutes int) (time.Duration, error) {
	d := time.Duration(minutes) * time.Minute
	for _, preset := range idle.Presets {
		if d == preset {
			return d, nil
		}
	}
	return 0, fmt.Errorf("--timeout must be one of 15, 30, or 60")
}

func readPassword(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stderr, prompt); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	logErrln()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

func loadToken() (string, error) {
	raw, err := os.ReadFile(config.DefaultTokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func saveToken(token string) error {
	path := config.DefaultTokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
