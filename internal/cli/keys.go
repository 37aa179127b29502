package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) keysCommand() *cobra.Command {
	var (
		account uint32
		count   int
	)
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List signer addresses derived from the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.openWallet()
			if err != nil {
				return err
			}
			signers, err := w.DeriveSigners(account, count)
			if err != nil {
				return err
			}
			for i, s := range signers {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  %s\n", i, s.Address.Hex(), s.Path)
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&account, "account", 0, "wallet account")
	cmd.Flags().IntVar(&count, "count", 5, "number of addresses")
	return cmd
}
