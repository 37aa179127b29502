package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/revshare"
)

func (a *app) signCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign authorizations and ledger grants with a wallet key",
	}
	cmd.AddCommand(
		a.signMintCommand(),
		a.signSaleCommand(),
		a.signApprovalCommand(),
		a.signDepositCommand(),
		a.signCollectionCommand(),
	)
	return cmd
}

func (a *app) signMintCommand() *cobra.Command {
	var (
		collection, token, uri string
		splits                 []string
		royaltyBPS             uint64
		ttl                    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Authorize issuing a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := api.ParseAddress("collection", collection)
			if err != nil {
				return err
			}
			id, err := api.ParseAmount("token", token)
			if err != nil {
				return err
			}
			royalty, err := parseRoyalty(splits, royaltyBPS)
			if err != nil {
				return err
			}
			s, err := a.signer(cmd)
			if err != nil {
				return err
			}
			m := &auth.MintAuthorization{
				Collection: coll,
				TokenID:    id,
				TokenURI:   uri,
				Royalty:    royalty,
				Expiry:     expiryAfter(ttl),
			}
			if err := auth.SignMint(m, s.Key); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.FromMint(m))
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection address")
	cmd.Flags().StringVar(&token, "token", "", "token id")
	cmd.Flags().StringVar(&uri, "uri", "", "token URI")
	cmd.Flags().StringArrayVar(&splits, "split", nil, "split entry address:shares, repeatable; shares sum to 10000")
	cmd.Flags().Uint64Var(&royaltyBPS, "royalty-bps", 0, "resale royalty in basis points")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "authorization lifetime")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("token")
	addSignerFlags(cmd)
	return cmd
}

func (a *app) signSaleCommand() *cobra.Command {
	var (
		collection, token, price string
		ttl                      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Sign a listing or an operator co-signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := api.ParseAddress("collection", collection)
			if err != nil {
				return err
			}
			id, err := api.ParseAmount("token", token)
			if err != nil {
				return err
			}
			p, err := api.ParseAmount("price", price)
			if err != nil {
				return err
			}
			s, err := a.signer(cmd)
			if err != nil {
				return err
			}
			sale := &auth.SaleAuthorization{
				Collection: coll,
				TokenID:    id,
				Price:      p,
				Expiry:     expiryAfter(ttl),
			}
			if err := auth.SignSale(sale, s.Key); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.FromSale(sale))
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection address")
	cmd.Flags().StringVar(&token, "token", "", "token id")
	cmd.Flags().StringVar(&price, "price", "", "price in base units")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "authorization lifetime")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("price")
	addSignerFlags(cmd)
	return cmd
}

// parseRoyalty builds a royalty from address:shares entries. No entries and
// no rate yields nil.
func parseRoyalty(splits []string, bps uint64) (*revshare.RoyaltyInfo, error) {
	if len(splits) == 0 && bps == 0 {
		return nil, nil
	}
	entries := make([]revshare.SplitEntry, 0, len(splits))
	for _, s := range splits {
		addr, shares, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("split %q: want address:shares", s)
		}
		beneficiary, err := api.ParseAddress("split", addr)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(shares, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("split %q: %w", s, err)
		}
		entries = append(entries, revshare.SplitEntry{Beneficiary: beneficiary, Shares: n})
	}
	return revshare.NewRoyaltyInfo(entries, bps)
}

func expiryAfter(ttl time.Duration) uint64 {
	return uint64(time.Now().Add(ttl).Unix())
}

