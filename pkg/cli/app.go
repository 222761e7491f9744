package cli

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"starquery/internal/browser"
	"starquery/internal/config"
	"starquery/internal/db"
	"starquery/internal/declarative"
	"starquery/internal/domain"
)

// app carries the resolved configuration shared by all commands.
type app struct {
	configPath string
	envFile    string
	driver     string
	dsn        string
	modelPath  string
	cubeName   string
	locale     string
	logLevel   string
	output     string
	hideEmpty  bool

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&a.envFile, "env-file", ".env", "dotenv file read before the environment")
	fs.StringVar(&a.driver, "driver", "", "Database driver (duckdb, sqlite3)")
	fs.StringVar(&a.dsn, "dsn", "", "Database file or data source name")
	fs.StringVarP(&a.modelPath, "model", "m", "", "Model document (YAML or JSON)")
	fs.StringVarP(&a.cubeName, "cube", "c", "", "Cube to query")
	fs.StringVar(&a.locale, "locale", "", "Locale of localized attributes")
	fs.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVarP(&a.output, "output", "o", "", "Output format (table, json); table on a terminal, json otherwise")
}

// resolve applies precedence flag > env > file > default and sets up
// logging.
func (a *app) resolve(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	override := func(name string, target *string, value string) {
		if flags.Changed(name) {
			*target = value
		}
	}
	override("driver", &cfg.Driver, a.driver)
	override("dsn", &cfg.DSN, a.dsn)
	override("model", &cfg.ModelPath, a.modelPath)
	override("locale", &cfg.Locale, a.locale)
	override("log-level", &cfg.LogLevel, a.logLevel)
	a.cfg = cfg

	if a.output == "" {
		a.output = detectOutput(cmd.OutOrStdout())
		_ = cmd.Root().PersistentFlags().Set("output", a.output)
	}
	if err := validateOutputFormat(a.output); err != nil {
		return err
	}

	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		a.logger.Warn("config warning", "warning", w)
	}
	return nil
}

// detectOutput picks table output for terminals and json for pipes.
func detectOutput(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "json"
}

func (a *app) model() (*declarative.Model, error) {
	if a.cfg.ModelPath == "" {
		return nil, domain.ErrArgument("no model document: set --model or STARQUERY_MODEL")
	}
	return declarative.LoadFile(a.cfg.ModelPath)
}

// cube loads the model and selects the cube named by --cube, or the only
// cube of the model.
func (a *app) cube() (*domain.Cube, error) {
	model, err := a.model()
	if err != nil {
		return nil, err
	}
	name := a.cubeName
	if name == "" {
		names := model.CubeNames()
		if len(names) != 1 {
			return nil, domain.ErrArgument("the model has %d cubes: select one with --cube", len(names))
		}
		name = names[0]
	}
	return model.Cube(name)
}

// browserOptions are the browser settings taken from the configuration.
func (a *app) browserOptions() browser.Options {
	return browser.Options{
		Locale:         a.cfg.Locale,
		Coalesce:       a.cfg.Coalesce,
		BatchSize:      a.cfg.BatchSize,
		HideEmptyCells: a.hideEmpty,
	}
}

// browser opens the database and a browser over the selected cube. The
// returned close function releases the database.
func (a *app) browser(ctx context.Context) (*browser.Browser, func(), error) {
	cube, err := a.cube()
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Open(ctx, a.cfg.Driver, a.cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	b, err := browser.New(conn, cube, a.browserOptions(), a.logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return b, func() { closeDB(conn, a.logger) }, nil
}

func closeDB(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("closing database failed", "error", err)
	}
}
