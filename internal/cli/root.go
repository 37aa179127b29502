// Package cli implements the marketctl command tree.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/wallet"
)

var log = logging.Logger("cli")

// Version is set at build time.
var Version = "0.1.0-dev"

// configKeys may be overridden by MARKET_<KEY> environment variables.
var configKeys = []string{
	"listen",
	"loglevel",
	"logfile",
	"marketplace",
	"protocol_recipient",
	"protocol_fee_bps",
	"overpayment",
	"replay_protection",
	"operator_domain",
	"dns_upstream",
	"operator_cache_ttl",
}

// app carries state shared by every command.
type app struct {
	v   *viper.Viper
	cfg config.Config
	kdf wallet.KDFParams
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v, kdf: wallet.DefaultKDFParams}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newApp().rootCommand()
}

// Execute runs the command tree against os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Marketplace settlement node",
		Long:          `marketctl manages a marketplace ledger: collections, escrow deposits, signed mint and sale authorizations, and their settlement.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.String("datadir", "", "data directory (default ~/.market)")
	flags.String("loglevel", "", "log level: debug, info, warn or error")
	flags.String("password", "", "wallet password (or MARKET_PASSWORD)")
	for _, name := range []string{"datadir", "loglevel", "password"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.initCommand(),
		a.keysCommand(),
		a.collectionCommand(),
		a.depositCommand(),
		a.approveCommand(),
		a.operatorsCommand(),
		a.signCommand(),
		a.settleCommand(),
		a.tokenCommand(),
		a.balanceCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)
	return root
}

// loadConfig reads <datadir>/config, applies MARKET_* overrides and sets up
// logging.
func (a *app) loadConfig() error {
	dataDir := a.v.GetString("datadir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return err
	}
	cfg.DataDir = dataDir

	for _, key := range configKeys {
		if a.v.IsSet(key) {
			if err := cfg.Set(key, a.v.GetString(key)); err != nil {
				return err
			}
		}
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	return setupLogging(cfg)
}

func setupLogging(cfg config.Config) error {
	lvl, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrInvalidLogLevel, cfg.LogLevel)
	}
	logging.SetupLogging(logging.Config{
		Format: logging.PlaintextOutput,
		Level:  lvl,
		Stderr: cfg.LogFile == "",
		File:   cfg.LogFile,
	})
	return nil
}

func (a *app) openLedger() (*ledger.BoltLedger, error) {
	return ledger.OpenBoltLedger(config.LedgerPath(a.cfg.DataDir))
}

func (a *app) openWallet() (*wallet.Wallet, error) {
	return wallet.Open(config.WalletPath(a.cfg.DataDir), a.v.GetString("password"))
}

// signer derives the key selected by the --account and --signer flags.
func (a *app) signer(cmd *cobra.Command) (*wallet.Signer, error) {
	account, _ := cmd.Flags().GetUint32("account")
	index, _ := cmd.Flags().GetUint32("signer")
	w, err := a.openWallet()
	if err != nil {
		return nil, err
	}
	return w.DeriveSigner(account, index)
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("account", 0, "wallet account")
	cmd.Flags().Uint32("signer", 0, "address index within the account")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
