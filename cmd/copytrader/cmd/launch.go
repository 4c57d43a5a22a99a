package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/launcher"
	"github.com/rustyeddy/copytrader/pkg/logx"
	"github.com/rustyeddy/copytrader/store"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Boot and supervise the whole copy topology",
	Long: `Launch verifies the store is reachable, loads every enabled
account from the registry, and spawns one isolated process per account:
masters first, then slaves after a short grace delay.

Exited children are logged and dropped from supervision; they are not
restarted automatically.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logx.New("LAUNCHER")

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := launcher.New(st, launcher.Config{
		Executable:        cfg.Launcher.Executable,
		ConfigPath:        cfgPath,
		GraceDelay:        cfg.Launcher.GraceDelay(),
		ShutdownTimeout:   cfg.Launcher.ShutdownTimeout(),
		SuperviseInterval: cfg.Launcher.SuperviseInterval(),
	}, log)

	return l.Run(ctx)
}
