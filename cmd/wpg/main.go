package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wpgraph/wpgraph/internal/config"
	"github.com/wpgraph/wpgraph/internal/debug"
	"github.com/wpgraph/wpgraph/internal/relations"
	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/storage/factory"
	"github.com/wpgraph/wpgraph/internal/telemetry"
	"github.com/wpgraph/wpgraph/internal/timeparsing"
	"github.com/wpgraph/wpgraph/internal/types"
	"github.com/wpgraph/wpgraph/internal/workflow"
)

var (
	// Version is the wpg release, overridden at link time.
	Version = "0.1.0"
	// Build is the commit the binary was built from.
	Build = "dev"
)

// noStoreAnnotation marks commands that run without opening the database.
const noStoreAnnotation = "wpg/no-store"

// app is the state shared by every command of one invocation.
type app struct {
	json bool

	actor  types.Actor
	clock  timeparsing.Clock
	logger *zap.Logger

	store   storage.Storage
	gate    *workflow.Table
	engine  *relations.Engine
	watcher *workflow.Watcher
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	root, a := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		writeError(os.Stderr, err, a.json)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{clock: timeparsing.SystemClock{}, logger: zap.NewNop()}
	var (
		verbose      bool
		quiet        bool
		projectRoles map[string]string
	)

	root := &cobra.Command{
		Use:           "wpg",
		Short:         "wpg - work package relation graph",
		Long:          `Work packages connected by typed relations. Closing, blocking and rescheduling propagate along the graph.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Build),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug.SetVerbose(verbose)
			debug.SetQuiet(quiet)
			a.json = config.GetBool(config.KeyJSON)
			a.logger = debug.NewStderrLogger(config.GetString(config.KeyLogFormat), config.GetString(config.KeyLogLevel))
			a.actor = resolveActor(projectRoles)
			debug.Logf("wpg: actor %s role %s config %s\n", a.actor.Name, a.actor.Role, orNone(config.ConfigFileUsed()))

			if err := telemetry.Init(cmd.Context(), telemetry.LoadSettings(Version)); err != nil {
				a.logger.Warn("telemetry disabled", zap.Error(err))
			}
			if _, ok := cmd.Annotations[noStoreAnnotation]; ok {
				return nil
			}
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("backend", "", "Storage backend: "+fmt.Sprint(factory.Backends()))
	flags.String("db", "", "SQLite database path (default: .wpgraph/wpgraph.db)")
	flags.String("dsn", "", "MySQL DSN for the mysql backend")
	flags.String("actor", "", "Actor name for the audit trail (default: $WPG_ACTOR, $USER)")
	flags.String("role", "", "Actor role checked against the workflow")
	flags.String("workflow", "", "Workflow rules file (.yaml or .toml)")
	flags.Bool("json", false, "Output in JSON format")
	flags.String("log-level", "", "Log level: debug, info, warn, error, none")
	flags.String("log-format", "", "Log format: console or json")
	flags.StringToStringVar(&projectRoles, "project-role", nil, "Per-project role, e.g. --project-role ops=viewer")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output (errors only)")

	bindFlag(flags, config.KeyBackend, "backend")
	bindFlag(flags, config.KeyDB, "db")
	bindFlag(flags, config.KeyDSN, "dsn")
	bindFlag(flags, config.KeyActor, "actor")
	bindFlag(flags, config.KeyRole, "role")
	bindFlag(flags, config.KeyWorkflowFile, "workflow")
	bindFlag(flags, config.KeyJSON, "json")
	bindFlag(flags, config.KeyLogLevel, "log-level")
	bindFlag(flags, config.KeyLogFormat, "log-format")

	root.AddGroup(
		&cobra.Group{ID: "items", Title: "Working With Items:"},
		&cobra.Group{ID: "graph", Title: "Relations & Graph:"},
		&cobra.Group{ID: "setup", Title: "Setup & Configuration:"},
	)
	root.AddCommand(
		newCreateCmd(a), newShowCmd(a), newListCmd(a), newDeleteCmd(a), newHistoryCmd(a),
		newStatusCmd(a), newDatesCmd(a),
		newRelCmd(a), newBlockedCmd(a), newDependentsCmd(a), newCyclesCmd(a),
		newInitCmd(a), newConfigCmd(a), newWorkflowCmd(a),
	)
	return root, a
}

// bindFlag makes the flag the highest-precedence source for key.
func bindFlag(flags *pflag.FlagSet, key, name string) {
	if err := config.Viper().BindPFlag(key, flags.Lookup(name)); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// resolveActor builds the actor from --actor/WPG_ACTOR, falling back to $USER.
func resolveActor(projectRoles map[string]string) types.Actor {
	name := config.GetString(config.KeyActor)
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "unknown"
	}
	return types.Actor{Name: name, Role: config.GetString(config.KeyRole), ProjectRoles: projectRoles}
}

// open connects the store, loads the workflow and builds the engine.
func (a *app) open(ctx context.Context) error {
	backend := config.GetString(config.KeyBackend)
	opts := factory.Options{
		Path:           config.GetString(config.KeyDB),
		DSN:            config.GetString(config.KeyDSN),
		ConnectTimeout: config.GetDuration(config.KeyConnectTimeout),
		Logger:         a.logger,
	}
	if opts.Path == "" && (backend == "" || backend == factory.BackendSQLite) {
		path, err := defaultDBPath()
		if err != nil {
			return err
		}
		opts.Path = path
	}

	debug.Logf("wpg: opening %s store (db=%q)\n", backend, opts.Path)
	s, err := factory.New(ctx, backend, opts)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	a.store = s

	statuses, err := s.ListStatuses(ctx)
	if err != nil {
		return err
	}
	a.gate = workflow.AllowAll(statuses)
	if path := config.GetString(config.KeyWorkflowFile); path != "" {
		debug.Logf("wpg: loading workflow %s\n", path)
		rules, err := workflow.LoadRules(path)
		if err != nil {
			return err
		}
		if a.gate, err = workflow.NewTable(statuses, rules); err != nil {
			return fmt.Errorf("workflow %s: %w", path, err)
		}
		if config.GetBool(config.KeyWorkflowWatch) {
			a.watcher, err = workflow.Watch(ctx, path, a.gate, workflow.WithWatchLogger(a.logger))
			if err != nil {
				return err
			}
		}
	}

	a.engine = relations.New(s, a.gate,
		relations.WithLogger(a.logger),
		relations.WithClock(a.clock),
		relations.WithMaxParallel(config.GetInt(config.KeyMaxParallel)),
	)
	return nil
}

// defaultDBPath places the database next to the nearest config.yaml, or in
// ./.wpgraph when there is none.
func defaultDBPath() (string, error) {
	if p, err := config.FindConfigYAMLPath(); err == nil {
		return filepath.Join(filepath.Dir(p), "wpgraph.db"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cwd, config.ProjectDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return filepath.Join(dir, "wpgraph.db"), nil
}

func (a *app) close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
		a.watcher = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry flush failed", zap.Error(err))
	}
	_ = a.logger.Sync() // stderr sync fails on some terminals
	return errors.Join(errs...)
}
