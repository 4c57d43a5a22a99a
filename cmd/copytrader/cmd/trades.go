package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/store"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Inspect recorded trade correlations",
}

var tradesOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List open master-to-slave correlations",
	Args:  cobra.NoArgs,
	RunE:  runTradesOpen,
}

var tradesSlave string

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.AddCommand(tradesOpenCmd)

	tradesOpenCmd.Flags().StringVar(&tradesSlave, "slave", "", "restrict to one slave account")
}

func runTradesOpen(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var mappings []store.Mapping
	if tradesSlave != "" {
		mappings, err = st.OpenMappingsBySlave(cmd.Context(), tradesSlave)
	} else {
		mappings, err = st.OpenMappings(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("list mappings: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MASTER\tSLAVE\tTICKET\tSYMBOL\tSIDE\tOPENED")
	for _, m := range mappings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			m.MasterTicket, m.SlaveName, m.SlaveTicket, m.Symbol, m.Direction,
			m.OpenTime.Format(time.RFC3339))
	}
	return w.Flush()
}
