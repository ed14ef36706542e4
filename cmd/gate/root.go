package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/gate/internal/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	cfg     config.Config
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Student entry/exit gate",
		Long: `gate records when enrolled students enter and leave a site.

Capture adapters post QR payloads or face descriptors to a scanning
station; each trigger opens a session when the student is outside and
closes it when they are inside. The same binary manages enrollment and
prints the attendance log and reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.LogLevel)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./gate.yaml or $XDG_CONFIG_HOME/gate/gate.yaml)")
	pf.String("env", config.EnvDev, `environment ("dev" seeds demo data)`)
	pf.String("db-driver", config.DriverSQLite, "storage backend: sqlite, postgres or memory")
	pf.String("db-path", "./data/gate.db", "sqlite database file")
	pf.String("db-url", "", "postgres connection URL")
	pf.String("log-level", "info", "debug, info, warn or error")

	cmd.AddCommand(
		newServeCmd(a),
		newIdentityCmd(a),
		newLogsCmd(a),
		newReportCmd(a),
	)
	return cmd
}

// newLogger writes to stderr so command output on stdout stays pipeable.
func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "gate",
		ReportTimestamp: true,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}
