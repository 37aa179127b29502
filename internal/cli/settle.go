package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/settlement"
)

func (a *app) settleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle a sale from a JSON request against the local ledger",
	}
	cmd.AddCommand(
		a.settleKindCommand(settlement.KindIssue, "Mint a token to the buyer and pay its split table"),
		a.settleKindCommand(settlement.KindTransfer, "Resell an issued token"),
	)
	return cmd
}

func (a *app) settleKindCommand(kind settlement.Kind, short string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Long:  short + ". The request has the same JSON shape as the HTTP API body.",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			req, err := body.Request()
			if err != nil {
				err = settlement.InvalidRequest(err)
				return fmt.Errorf("%s: %w", settlement.CodeOf(err), err)
			}

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()
			engine, err := a.newEngine(cmd.Context(), l, nil)
			if err != nil {
				return err
			}

			var receipt *settlement.Receipt
			if kind == settlement.KindIssue {
				receipt, err = engine.IssueAndSell(cmd.Context(), req)
			} else {
				receipt, err = engine.TransferAndSell(cmd.Context(), req)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", settlement.CodeOf(err), err)
			}
			return printJSON(cmd.OutOrStdout(), api.FromReceipt(receipt))
		},
	}
	cmd.Flags().StringVarP(&file, "request", "r", "-", "request JSON file, - for stdin")
	return cmd
}

func readRequest(cmd *cobra.Command, file string) (*api.SettleRequest, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var body api.SettleRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &body, nil
}
