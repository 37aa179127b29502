package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libmarket-go/api"
	"github.com/bitfsorg/libmarket-go/config"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/operators"
	"github.com/bitfsorg/libmarket-go/settlement"
	"github.com/bitfsorg/libmarket-go/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	collection  = "0xc011ec7100000000000000000000000000000001"
	marketplace = "0x00000000000000000000000000000000000000ee"
	treasury    = "0x00000000000000000000000000000000000000fe"
	artist      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyer       = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

// run executes one marketctl invocation against dataDir and returns stdout.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.kdf = wallet.KDFParams{Time: 1, Memory: 64, Threads: 1}
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--datadir", dataDir))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := run(t, dataDir, args...)
	require.NoError(t, err, "marketctl %s", strings.Join(args, " "))
	return out
}

func setupNode(t *testing.T) string {
	t.Helper()
	t.Setenv("MARKET_PASSWORD", "pw")
	t.Setenv("MARKET_MARKETPLACE", marketplace)
	t.Setenv("MARKET_PROTOCOL_RECIPIENT", treasury)
	t.Setenv("MARKET_PROTOCOL_FEE_BPS", "300")

	dir := filepath.Join(t.TempDir(), "node")
	out := mustRun(t, dir, "init", "--mnemonic", testMnemonic)
	assert.Contains(t, out, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	assert.NotContains(t, out, "Mnemonic", "restored mnemonics are not echoed")
	return dir
}

func TestInitWritesConfigAndWallet(t *testing.T) {
	dir := setupNode(t)

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, marketplace, cfg.Marketplace)
	assert.Equal(t, uint64(300), cfg.ProtocolFeeBPS)

	for _, p := range []string{config.WalletPath(dir), config.LedgerPath(dir)} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	_, err = run(t, dir, "init", "--mnemonic", testMnemonic)
	assert.ErrorContains(t, err, "already exists")
}

func TestInitRequiresPassword(t *testing.T) {
	t.Setenv("MARKET_PASSWORD", "")
	_, err := run(t, t.TempDir(), "init")
	assert.ErrorContains(t, err, "password")
}

func TestKeys(t *testing.T) {
	dir := setupNode(t)
	out := mustRun(t, dir, "keys", "--count", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	assert.Contains(t, lines[1], "m/44'/60'/0'/0/1")

	t.Setenv("MARKET_PASSWORD", "wrong")
	_, err := run(t, dir, "keys")
	assert.ErrorIs(t, err, wallet.ErrDecryptionFailed)
}

func TestInvalidEnvironmentOverride(t *testing.T) {
	dir := setupNode(t)
	t.Setenv("MARKET_PROTOCOL_FEE_BPS", "20000")
	_, err := run(t, dir, "balance", buyer.Hex())
	assert.ErrorIs(t, err, config.ErrInvalidFee)
}

func TestVersionSkipsConfig(t *testing.T) {
	t.Setenv("MARKET_PROTOCOL_FEE_BPS", "20000")
	out := mustRun(t, t.TempDir(), "version")
	assert.Contains(t, out, "marketctl version "+Version)
}

func TestIssueAndResaleFlow(t *testing.T) {
	dir := setupNode(t)
	w, err := wallet.FromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	signers, err := w.DeriveSigners(0, 3)
	require.NoError(t, err)
	creator, operator := signers[0], signers[1]

	mustRun(t, dir, "collection", "create", collection)
	mustRun(t, dir, "operators", "add", operator.Address.Hex())
	assert.Equal(t, operator.Address.Hex()+"\n", mustRun(t, dir, "operators", "list"))
	mustRun(t, dir, "deposit", buyer.Hex(), "1000")

	var mint api.Mint
	out := mustRun(t, dir, "sign", "mint", "--collection", collection, "--token", "1",
		"--uri", "ipfs://one", "--split", artist.Hex()+":10000", "--royalty-bps", "500")
	require.NoError(t, json.Unmarshal([]byte(out), &mint))

	var listing, cosign api.Sale
	out = mustRun(t, dir, "sign", "sale", "--collection", collection, "--token", "1", "--price", "1000")
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	out = mustRun(t, dir, "sign", "sale", "--collection", collection, "--token", "1", "--price", "1000", "--signer", "1")
	require.NoError(t, json.Unmarshal([]byte(out), &cosign))

	reqPath := filepath.Join(t.TempDir(), "issue.json")
	data, err := json.Marshal(&api.SettleRequest{
		Collection: collection,
		TokenID:    "1",
		Buyer:      buyer.Hex(),
		Payment:    "1000",
		Mint:       &mint,
		Listing:    &listing,
		Operator:   &cosign,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reqPath, data, 0600))

	var receipt api.Receipt
	out = mustRun(t, dir, "settle", "issue", "-r", reqPath)
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, creator.Address.Hex(), receipt.Seller)
	require.Len(t, receipt.Payouts, 2)
	assert.Equal(t, "30", receipt.Payouts[0].Amount)
	assert.Equal(t, "970", receipt.Payouts[1].Amount)

	assert.Equal(t, "970\n", mustRun(t, dir, "balance", artist.Hex()))
	assert.Equal(t, "0\n", mustRun(t, dir, "balance", buyer.Hex()))

	var tok api.Token
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, dir, "token", collection, "1")), &tok))
	assert.Equal(t, buyer.Hex(), tok.Owner)
	assert.Equal(t, "ipfs://one", tok.URI)
	assert.Equal(t, uint64(500), tok.Royalty.BasisPoints)

	// Settling the same request twice fails on the existing token.
	_, err = run(t, dir, "settle", "issue", "-r", reqPath)
	assert.ErrorContains(t, err, "AlreadyIssued")

	// A co-signature for a different price than the listing is refused.
	mustRun(t, dir, "approve", collection, buyer.Hex())
	out = mustRun(t, dir, "sign", "sale", "--collection", collection, "--token", "1", "--price", "500", "--signer", "1")
	require.NoError(t, json.Unmarshal([]byte(out), &cosign))
	data, err = json.Marshal(&api.SettleRequest{
		Collection: collection,
		TokenID:    "1",
		Buyer:      signers[2].Address.Hex(),
		Payment:    "500",
		Listing:    &listing,
		Operator:   &cosign,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reqPath, data, 0600))
	_, err = run(t, dir, "settle", "transfer", "-r", reqPath)
	assert.ErrorContains(t, err, "RequestMismatch")
}

func TestParseRoyalty(t *testing.T) {
	r, err := parseRoyalty(nil, 0)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRoyalty([]string{artist.Hex() + ":6000", buyer.Hex() + ":4000"}, 250)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Splits.Len())
	assert.Equal(t, uint64(250), r.BasisPoints)

	_, err = parseRoyalty([]string{artist.Hex()}, 0)
	assert.Error(t, err)
	_, err = parseRoyalty([]string{artist.Hex() + ":9000"}, 0)
	assert.Error(t, err)
}

func TestSignGrants(t *testing.T) {
	dir := setupNode(t)
	w, err := wallet.FromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	signers, err := w.DeriveSigners(0, 2)
	require.NoError(t, err)
	owner, operator := signers[0], signers[1]

	l := ledger.NewMemLedger()
	engine, err := settlement.NewEngine(l, operators.NewStaticRegistry(operator.Address), settlement.Config{
		Marketplace: common.HexToAddress(marketplace),
	})
	require.NoError(t, err)
	ctx := context.Background()
	coll := common.HexToAddress(collection)

	var reg api.Collection
	out := mustRun(t, dir, "sign", "collection", collection, owner.Address.Hex(), "--signer", "1")
	require.NoError(t, json.Unmarshal([]byte(out), &reg))
	c, err := reg.Authorization()
	require.NoError(t, err)
	require.NoError(t, engine.RegisterCollection(ctx, c))

	var dep api.Deposit
	out = mustRun(t, dir, "sign", "deposit", buyer.Hex(), "250", "--signer", "1", "--nonce", "7")
	require.NoError(t, json.Unmarshal([]byte(out), &dep))
	assert.Equal(t, "7", dep.Nonce)
	d, err := dep.Authorization(buyer)
	require.NoError(t, err)
	require.NoError(t, engine.Deposit(ctx, d))

	var appr api.Approval
	out = mustRun(t, dir, "sign", "approval", collection)
	require.NoError(t, json.Unmarshal([]byte(out), &appr))
	assert.Equal(t, owner.Address.Hex(), appr.Owner)
	assert.Equal(t, common.HexToAddress(marketplace).Hex(), appr.Spender)
	assert.True(t, appr.Approved)
	a, err := appr.Authorization(coll)
	require.NoError(t, err)
	require.NoError(t, engine.Approve(ctx, a))

	require.NoError(t, l.View(ctx, func(tx ledger.Tx) error {
		got, err := tx.CollectionOwner(coll)
		require.NoError(t, err)
		assert.Equal(t, owner.Address, got)
		bal, err := tx.Balance(buyer)
		require.NoError(t, err)
		assert.Equal(t, "250", bal.String())
		return nil
	}))

	// A deposit signed by a non-operator key is refused.
	out = mustRun(t, dir, "sign", "deposit", buyer.Hex(), "250")
	require.NoError(t, json.Unmarshal([]byte(out), &dep))
	d, err = dep.Authorization(buyer)
	require.NoError(t, err)
	assert.ErrorIs(t, engine.Deposit(ctx, d), settlement.ErrGrantSignatureInvalid)
}
