package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/wallet"
)

func (a *app) initCommand() *cobra.Command {
	var (
		mnemonic   string
		passphrase string
		words      int
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory, config file, wallet and ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := a.cfg
			password := a.v.GetString("password")
			if password == "" {
				return errors.New("a wallet password is required (--password or MARKET_PASSWORD)")
			}

			cfgPath := config.ConfigPath(cfg.DataDir)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			if err := config.SaveConfig(cfgPath, cfg); err != nil {
				return err
			}

			generated := mnemonic == ""
			if generated {
				bits := wallet.Mnemonic12Words
				if words == 24 {
					bits = wallet.Mnemonic24Words
				}
				var err error
				if mnemonic, err = wallet.GenerateMnemonic(bits); err != nil {
					return err
				}
			}
			seed, err := wallet.SeedFromMnemonic(mnemonic, passphrase)
			if err != nil {
				return err
			}
			if err := wallet.Create(config.WalletPath(cfg.DataDir), seed, password, a.kdf); err != nil {
				return err
			}

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			if err := l.Close(); err != nil {
				return err
			}

			w, err := wallet.NewWallet(seed)
			if err != nil {
				return err
			}
			s, err := w.DeriveSigner(0, 0)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Initialized %s\n", cfg.DataDir)
			if generated {
				fmt.Fprintf(out, "Mnemonic (write this down): %s\n", mnemonic)
			}
			fmt.Fprintf(out, "Address %s: %s\n", s.Path, s.Address.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "restore from an existing BIP39 mnemonic")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "optional BIP39 passphrase")
	cmd.Flags().IntVar(&words, "words", 12, "mnemonic length: 12 or 24")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
