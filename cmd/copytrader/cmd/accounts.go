package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/store"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the account registry",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a registry account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(cmd, args[0], true)
	},
}

var accountsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(cmd, args[0], false)
	},
}

var (
	acctType     string
	acctPath     string
	acctSuffix   string
	acctMap      string
	acctSlippage int
	acctDisabled bool
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd, accountsListCmd, accountsEnableCmd, accountsDisableCmd)

	accountsAddCmd.Flags().StringVar(&acctType, "type", "slave", "account role: master or slave")
	accountsAddCmd.Flags().StringVar(&acctPath, "path", "", "terminal connection path (required)")
	accountsAddCmd.Flags().StringVar(&acctSuffix, "suffix", "", "broker symbol suffix, e.g. .pro")
	accountsAddCmd.Flags().StringVar(&acctMap, "map", "", "symbol overrides as SRC=DST,SRC=DST")
	accountsAddCmd.Flags().IntVar(&acctSlippage, "slippage", 0, "per-account slippage tolerance in points (0 = global default)")
	accountsAddCmd.Flags().BoolVar(&acctDisabled, "disabled", false, "register the account without enabling it")
	accountsAddCmd.MarkFlagRequired("path")
}

func openStore() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func parseAccountType(s string) (store.AccountType, error) {
	switch strings.ToLower(s) {
	case "master":
		return store.Master, nil
	case "slave":
		return store.Slave, nil
	default:
		return "", fmt.Errorf("unknown account type %q (want master or slave)", s)
	}
}

// parseSymbolMap turns "XAUUSD=GOLD,US30=DJ30" into a map.
func parseSymbolMap(s string) (map[string]string, error) {
	m := make(map[string]string)
	if s == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("bad symbol mapping %q (want SRC=DST)", pair)
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m, nil
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	typ, err := parseAccountType(acctType)
	if err != nil {
		return err
	}
	symMap, err := parseSymbolMap(acctMap)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a := store.Account{
		Name:              args[0],
		Type:              typ,
		Path:              acctPath,
		Enabled:           !acctDisabled,
		SymbolMap:         symMap,
		Suffix:            acctSuffix,
		SlippageTolerance: acctSlippage,
	}
	if err := st.SaveAccount(cmd.Context(), a); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", a.Name, a.Type)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accounts, err := st.EnabledAccounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPATH\tSUFFIX\tSLIPPAGE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", a.Name, a.Type, a.Path, a.Suffix, a.SlippageTolerance)
	}
	return w.Flush()
}

func setAccountEnabled(cmd *cobra.Command, name string, enabled bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetEnabled(cmd.Context(), name, enabled); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}
