package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/operators"
)

func (a *app) operatorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Manage the operator set stored in the ledger",
	}

	edit := func(use, short string, fn func(tx ledger.Tx, addr common.Address) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <address>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := api.ParseAddress("address", args[0])
				if err != nil {
					return err
				}
				if err := a.update(cmd, func(tx ledger.Tx) error { return fn(tx, addr) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", use, addr.Hex())
				return nil
			},
		}
	}

	var dns bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List operators in the ledger, or published under operator_domain with --dns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				addrs []common.Address
				err   error
			)
			if dns {
				if a.cfg.OperatorDomain == "" {
					return fmt.Errorf("operator_domain is not configured")
				}
				r := operators.NewDNSRegistry(a.cfg.OperatorDomain, operators.NewUpstreamResolver(a.cfg.DNSUpstream))
				addrs, err = r.Operators(cmd.Context())
			} else {
				err = a.view(cmd, func(tx ledger.Tx) error {
					var err error
					addrs, err = tx.Operators()
					return err
				})
			}
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			}
			return nil
		},
	}
	list.Flags().BoolVar(&dns, "dns", false, "query the DNS operator records")

	cmd.AddCommand(
		edit("add", "Register an operator", func(tx ledger.Tx, addr common.Address) error { return tx.AddOperator(addr) }),
		edit("remove", "Deregister an operator", func(tx ledger.Tx, addr common.Address) error { return tx.RemoveOperator(addr) }),
		list,
	)
	return cmd
}
