package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ajramos/kyra/internal/api"
	"github.com/ajramos/kyra/internal/app"
	"github.com/ajramos/kyra/internal/config"
	"github.com/ajramos/kyra/internal/guard"
	"github.com/ajramos/kyra/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errLoginRequired is returned when a command's route is protected and
// nobody is logged in
var errLoginRequired = errors.New("not logged in, run `kyra login` first")

func main() {
	// A missing .env is normal; only a malformed one is worth reporting
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries global flags and I/O for every subcommand
type cli struct {
	configPath string
	offline    bool
	width      int

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// set by withContainer for commands that follow config edits
	manager *config.Manager
	logger  *log.Logger
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "kyra",
		Short:         "Kyra AI email assistant",
		Long:          "Kyra triages your inbox, writes drafts and keeps your timeline in one place.",
		Version:       version.GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to configuration file (default: ~/.config/kyra/config.json)")
	flags.BoolVar(&c.offline, "offline", false, "Show the last saved responses without contacting the backend")
	flags.IntVar(&c.width, "width", 0, "Row width for lists (default: row_width from config)")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.dashboardCmd(),
		c.inboxCmd(),
		c.showCmd(),
		c.syncCmd(),
		c.archiveCmd(),
		c.readCmd(),
		c.deleteCmd(),
		c.draftCmd(),
		c.sendCmd(),
		c.chatCmd(),
		c.digestCmd(),
		c.timelineCmd(),
		c.calendarCmd(),
		c.statsCmd(),
		c.orgsCmd(),
		c.guardCmd(),
		c.configCmd(),
		c.versionCmd(),
	)
	return root
}

// getConfigPath returns the configuration file path using the following priority:
// 1. CLI flag
// 2. Environment variable KYRA_CONFIG
// 3. Default path ~/.config/kyra/config.json
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return config.ExpandPath(flagValue)
	}

	if envPath := strings.TrimSpace(os.Getenv("KYRA_CONFIG")); envPath != "" {
		return config.ExpandPath(envPath)
	}

	return config.DefaultConfigPath()
}

// getLogPath returns the log file path: config value or the default
func getLogPath(configValue string) string {
	if configValue != "" {
		return config.ExpandPath(configValue)
	}
	return config.DefaultLogPath()
}

// loadConfig reads the config file, applies KYRA_* overrides and validates
func (c *cli) loadConfig() (*config.Config, string, error) {
	m, path, err := c.loadManager()
	if err != nil {
		return nil, path, err
	}
	return m.GetConfig(), path, nil
}

func (c *cli) loadManager() (*config.Manager, string, error) {
	path := getConfigPath(c.configPath)
	m := config.NewManager()
	if err := m.LoadFromFile(path); err != nil {
		return nil, path, err
	}
	return m, path, nil
}

// openLogger opens the append-only log file. Logging is best effort: a
// failure yields a logger that discards.
func openLogger(path string) (*log.Logger, func()) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return log.New(f, "[kyra] ", log.LstdFlags|log.Lmicroseconds), func() { _ = f.Close() }
		}
	}
	return log.New(io.Discard, "", 0), func() {}
}

// rowWidth is the --width flag or the configured row width
func (c *cli) rowWidth(cfg *config.Config) int {
	if c.width > 0 {
		return c.width
	}
	return cfg.RowWidth
}

// withContainer builds the client container, checks route against the
// guard, hydrates cached responses and runs fn. An empty route skips the
// guard.
func (c *cli) withContainer(cmd *cobra.Command, route string, fn func(ctx context.Context, k *app.Container) error) error {
	m, _, err := c.loadManager()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()

	logger, closeLog := openLogger(getLogPath(cfg.LogFile))
	defer closeLog()
	c.manager, c.logger = m, logger
	logger.Printf("kyra %s: %s", version.GetVersion(), cmd.CommandPath())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	k, err := app.New(ctx, app.Options{
		Config: cfg,
		Logger: logger,
		Navigator: api.NavigatorFunc(func(path string) {
			logger.Printf("session rejected by backend, redirecting to %s", path)
			fmt.Fprintln(c.errOut, "Your session has expired. Run `kyra login` to sign in again.")
		}),
		Output: c.errOut,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := k.Close(); cerr != nil {
			logger.Printf("close: %v", cerr)
		}
	}()

	if route != "" {
		if d := k.Guard.Decide(route); !d.Allowed() && d.Class == guard.Protected {
			logger.Printf("guard: %s denied, redirect %s", route, d.Redirect)
			return errLoginRequired
		}
	}

	if err := k.Hydrate(ctx); err != nil {
		logger.Printf("hydrate: %v", err)
	}
	return fn(ctx, k)
}
