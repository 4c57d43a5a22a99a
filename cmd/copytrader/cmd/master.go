package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/broker/sim"
	"github.com/rustyeddy/copytrader/bus"
	"github.com/rustyeddy/copytrader/master"
	"github.com/rustyeddy/copytrader/pkg/logx"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Run a master node: poll the terminal and broadcast signals",
	Long: `Master connects to one terminal, polls its open positions on a
fixed interval, and publishes an OPEN or CLOSE signal on the bus for every
transition between consecutive snapshots.

Normally spawned by 'copytrader launch', one process per master account.`,
	Args: cobra.NoArgs,
	RunE: runMaster,
}

var (
	masterName string
	masterPath string
)

func init() {
	rootCmd.AddCommand(masterCmd)

	masterCmd.Flags().StringVar(&masterName, "name", "", "account name (required)")
	masterCmd.Flags().StringVar(&masterPath, "path", "", "terminal connection path (required)")
	masterCmd.MarkFlagRequired("name")
	masterCmd.MarkFlagRequired("path")
}

func runMaster(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logx.New("MASTER:" + masterName)

	b, err := sim.Load(masterPath)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}

	pub, err := bus.NewPublisher(cfg.Bus.Addr, cfg.Bus.Topic, log)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pub.Start(ctx); err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	log.WithField("addr", cfg.Bus.Addr).Info("publisher started")

	node := master.New(masterName, b, pub, cfg.Master.PollInterval(), log)
	return node.Run(ctx)
}
