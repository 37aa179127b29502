package cli

import (
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/auth"
)

// nonceFlag returns --nonce, or the current time in nanoseconds when unset.
func nonceFlag(cmd *cobra.Command) (*big.Int, error) {
	s, _ := cmd.Flags().GetString("nonce")
	if s == "" {
		return big.NewInt(time.Now().UnixNano()), nil
	}
	return api.ParseAmount("nonce", s)
}

func addGrantFlags(cmd *cobra.Command, ttl time.Duration) {
	cmd.Flags().String("nonce", "", "grant nonce, defaults to the current time")
	cmd.Flags().Duration("ttl", ttl, "grant lifetime")
	addSignerFlags(cmd)
}

func grantExpiry(cmd *cobra.Command) uint64 {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	return expiryAfter(ttl)
}

func (a *app) signApprovalCommand() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "approval <collection>",
		Short: "Approve the marketplace to move the signer's tokens, as an API body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Marketplace == "" {
				return errMarketplaceUnset
			}
			collection, err := api.ParseAddress("collection", args[0])
			if err != nil {
				return err
			}
			nonce, err := nonceFlag(cmd)
			if err != nil {
				return err
			}
			s, err := a.signer(cmd)
			if err != nil {
				return err
			}
			grant := &auth.ApprovalAuthorization{
				Collection: collection,
				Owner:      s.Address,
				Spender:    a.cfg.MarketplaceAddress(),
				Approved:   !revoke,
				Nonce:      nonce,
				Expiry:     grantExpiry(cmd),
			}
			if err := auth.SignApproval(grant, s.Key); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.FromApproval(grant))
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	addGrantFlags(cmd, time.Hour)
	return cmd
}

func (a *app) signDepositCommand() *cobra.Command {
	return withGrantFlags(&cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Attest an escrow deposit as an operator, as an API body",
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
			nonce, err := nonceFlag(cmd)
			if err != nil {
				return err
			}
			s, err := a.signer(cmd)
			if err != nil {
				return err
			}
			grant := &auth.DepositAuthorization{
				Account: account,
				Amount:  amount,
				Nonce:   nonce,
				Expiry:  grantExpiry(cmd),
			}
			if err := auth.SignDeposit(grant, s.Key); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.FromDeposit(grant))
		},
	})
}

func (a *app) signCollectionCommand() *cobra.Command {
	return withGrantFlags(&cobra.Command{
		Use:   "collection <collection> <owner>",
		Short: "Register a collection as an operator, as an API body",
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
			nonce, err := nonceFlag(cmd)
			if err != nil {
				return err
			}
			s, err := a.signer(cmd)
			if err != nil {
				return err
			}
			grant := &auth.CollectionAuthorization{
				Collection: collection,
				Owner:      owner,
				Nonce:      nonce,
				Expiry:     grantExpiry(cmd),
			}
			if err := auth.SignCollection(grant, s.Key); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.FromCollection(grant))
		},
	})
}

func withGrantFlags(cmd *cobra.Command) *cobra.Command {
	addGrantFlags(cmd, time.Hour)
	return cmd
}
