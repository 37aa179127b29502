package cli

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/ledger"
)

// update runs fn in one write transaction on the node's ledger.
func (a *app) update(cmd *cobra.Command, fn func(ledger.Tx) error) error {
	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()
	return l.Update(cmd.Context(), fn)
}

func (a *app) view(cmd *cobra.Command, fn func(ledger.Tx) error) error {
	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()
	return l.View(cmd.Context(), fn)
}

func (a *app) collectionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections",
	}

	create := &cobra.Command{
		Use:   "create <collection> [owner]",
		Short: "Register a collection; the owner defaults to the selected wallet signer",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := api.ParseAddress("collection", args[0])
			if err != nil {
				return err
			}
			var owner common.Address
			if len(args) == 2 {
				if owner, err = api.ParseAddress("owner", args[1]); err != nil {
					return err
				}
			} else {
				s, err := a.signer(cmd)
				if err != nil {
					return err
				}
				owner = s.Address
			}
			if err := a.update(cmd, func(tx ledger.Tx) error {
				return tx.CreateCollection(collection, owner)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s owned by %s\n", collection.Hex(), owner.Hex())
			return nil
		},
	}
	addSignerFlags(create)
	cmd.AddCommand(create)
	return cmd
}

func (a *app) depositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Credit escrow to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := api.ParseAddress("account", args[0])
			if err != nil {
				return err
			}
			amount, err := api.ParseAmount("amount", args[1])
			if err != nil {
				return err
			}
			var balance *big.Int
			if err := a.update(cmd, func(tx ledger.Tx) error {
				if err := tx.Deposit(account, amount); err != nil {
					return err
				}
				balance, err = tx.Balance(account)
				return err
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance %s\n", account.Hex(), balance)
			return nil
		},
	}
}

func (a *app) approveCommand() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "approve <collection> <owner>",
		Short: "Let the marketplace move the owner's tokens in a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := api.ParseAddress("collection", args[0])
			if err != nil {
				return err
			}
			owner, err := api.ParseAddress("owner", args[1])
			if err != nil {
				return err
			}
			if a.cfg.Marketplace == "" {
				return errMarketplaceUnset
			}
			marketplace := a.cfg.MarketplaceAddress()
			if err := a.update(cmd, func(tx ledger.Tx) error {
				return tx.Approve(collection, owner, marketplace, !revoke)
			}); err != nil {
				return err
			}
			verb := "approved"
			if revoke {
				verb = "revoked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marketplace %s %s for %s in %s\n", marketplace.Hex(), verb, owner.Hex(), collection.Hex())
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "withdraw the approval")
	return cmd
}

func (a *app) tokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <collection> <id>",
		Short: "Show an issued token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, err := api.ParseAddress("collection", args[0])
			if err != nil {
				return err
			}
			id, err := api.ParseAmount("id", args[1])
			if err != nil {
				return err
			}
			var tok *ledger.Token
			if err := a.view(cmd, func(tx ledger.Tx) error {
				var err error
				tok, err = tx.Token(collection, id)
				return err
			}); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), &api.Token{
				Collection: tok.Collection.Hex(),
				TokenID:    tok.ID.String(),
				Owner:      tok.Owner.Hex(),
				URI:        tok.URI,
				Royalty:    api.FromRoyaltyInfo(tok.Royalty),
			})
		},
	}
}

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account's escrow balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := api.ParseAddress("account", args[0])
			if err != nil {
				return err
			}
			var balance *big.Int
			if err := a.view(cmd, func(tx ledger.Tx) error {
				var err error
				balance, err = tx.Balance(account)
				return err
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance.String())
			return nil
		},
	}
}
