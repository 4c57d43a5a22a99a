package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/broker/sim"
	"github.com/rustyeddy/copytrader/bus"
	"github.com/rustyeddy/copytrader/pkg/logx"
	"github.com/rustyeddy/copytrader/slave"
	"github.com/rustyeddy/copytrader/store"
)

var slaveCmd = &cobra.Command{
	Use:   "slave",
	Short: "Run a slave node: mirror broadcast signals onto a terminal",
	Long: `Slave subscribes to the signal bus and mirrors every OPEN and
CLOSE onto its own terminal, translating symbols per the account's map and
suffix, rejecting opens whose live price has drifted past the slippage
tolerance, and recording master-to-slave ticket correlations in the store.

Normally spawned by 'copytrader launch', one process per slave account.`,
	Args: cobra.NoArgs,
	RunE: runSlave,
}

var (
	slaveName string
	slavePath string
)

func init() {
	rootCmd.AddCommand(slaveCmd)

	slaveCmd.Flags().StringVar(&slaveName, "name", "", "account name (required)")
	slaveCmd.Flags().StringVar(&slavePath, "path", "", "terminal connection path (required)")
	slaveCmd.MarkFlagRequired("name")
	slaveCmd.MarkFlagRequired("path")
}

func runSlave(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logx.New("SLAVE:" + slaveName)

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acct, err := st.AccountByName(ctx, slaveName)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct.SlippageTolerance <= 0 {
		acct.SlippageTolerance = cfg.Slave.SlippageTolerance
	}

	b, err := sim.Load(slavePath)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}

	sub, err := bus.NewSubscriber(cfg.Bus.Addr, cfg.Bus.Topic, cfg.Bus.ReceiveTimeout(), log)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	defer sub.Close()

	if err := sub.Start(ctx); err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	log.WithField("addr", cfg.Bus.Addr).Info("subscribed to signal bus")

	node := slave.New(acct, b, sub, st, slave.Options{
		Magic:            cfg.Slave.Magic,
		ReconnectBackoff: cfg.Slave.ReconnectBackoff(),
	}, log)

	return node.Run(ctx)
}
