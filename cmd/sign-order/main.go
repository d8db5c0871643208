package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/custodex/pkg/app/core/asset"
	"github.com/uhyunpark/custodex/pkg/app/core/orderbook"
	"github.com/uhyunpark/custodex/pkg/app/core/transaction"
	"github.com/uhyunpark/custodex/pkg/crypto"
	"github.com/uhyunpark/custodex/pkg/num"
)

const (
	keyFlagName     = "key"
	chainIDFlagName = "chain-id"
	tickerFlagName  = "ticker"
	sideFlagName    = "side"
	amountFlagName  = "amount"
	priceFlagName   = "price"
	nonceFlagName   = "nonce"
)

// rootCmd prints signed commands ready to POST to /api/v1/orders or
// /api/v1/withdrawals.
var rootCmd = &cobra.Command{
	Use:          "sign-order",
	Short:        "Sign Custodex trader commands with EIP-712",
	SilenceUsage: true,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new trader key",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		return printJSON(struct {
			Address    string `json:"address"`
			PrivateKey string `json:"private_key"`
		}{signer.Address().Hex(), signer.PrivateKeyHex()})
	},
}

var limitCmd = &cobra.Command{
	Use:   "limit",
	Short: "Sign a limit order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signOrder(cmd, transaction.CmdLimitOrder)
	},
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Sign a market order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return signOrder(cmd, transaction.CmdMarketOrder)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Sign a withdrawal",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, verifier, err := setup(cmd)
		if err != nil {
			return err
		}
		ticker, amount, nonce, err := commonFlags(cmd)
		if err != nil {
			return err
		}
		c := &transaction.Command{
			Type: transaction.CmdWithdraw,
			Withdraw: &transaction.WithdrawPayload{
				Trader: signer.Address(),
				Ticker: ticker,
				Amount: amount,
				Nonce:  nonce,
			},
		}
		if err := verifier.Sign(signer, c); err != nil {
			return err
		}
		return printJSON(c)
	},
}

func init() {
	rootCmd.PersistentFlags().String(keyFlagName, "", "hex private key (default $CUSTODEX_KEY)")
	rootCmd.PersistentFlags().Int64(chainIDFlagName, 1337, "EIP-712 domain chain id")

	for _, c := range []*cobra.Command{limitCmd, marketCmd, withdrawCmd} {
		c.Flags().String(tickerFlagName, "", "asset ticker, e.g. REP")
		c.Flags().String(amountFlagName, "", "amount in minimal units")
		c.Flags().Uint64(nonceFlagName, 1, "strictly increasing per trader")
		_ = c.MarkFlagRequired(tickerFlagName)
		_ = c.MarkFlagRequired(amountFlagName)
	}
	for _, c := range []*cobra.Command{limitCmd, marketCmd} {
		c.Flags().String(sideFlagName, "", "buy or sell")
		_ = c.MarkFlagRequired(sideFlagName)
	}
	limitCmd.Flags().String(priceFlagName, "", "price in base units per token")
	_ = limitCmd.MarkFlagRequired(priceFlagName)

	rootCmd.AddCommand(keygenCmd, limitCmd, marketCmd, withdrawCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signOrder(cmd *cobra.Command, typ transaction.CommandType) error {
	signer, verifier, err := setup(cmd)
	if err != nil {
		return err
	}
	ticker, amount, nonce, err := commonFlags(cmd)
	if err != nil {
		return err
	}
	sideStr, _ := cmd.Flags().GetString(sideFlagName)
	side, err := orderbook.ParseSide(sideStr)
	if err != nil {
		return err
	}

	price := num.Zero
	if typ == transaction.CmdLimitOrder {
		priceStr, _ := cmd.Flags().GetString(priceFlagName)
		if price, err = num.UintFromString(priceStr); err != nil {
			return fmt.Errorf("invalid --%s: %w", priceFlagName, err)
		}
	}

	c := &transaction.Command{
		Type: typ,
		Order: &transaction.OrderPayload{
			Trader: signer.Address(),
			Ticker: ticker,
			Side:   side,
			Amount: amount,
			Price:  price,
			Nonce:  nonce,
		},
	}
	if err := verifier.Sign(signer, c); err != nil {
		return err
	}
	return printJSON(c)
}

func setup(cmd *cobra.Command) (*crypto.Signer, *transaction.Verifier, error) {
	key, _ := cmd.Flags().GetString(keyFlagName)
	if key == "" {
		key = os.Getenv("CUSTODEX_KEY")
	}
	if key == "" {
		return nil, nil, fmt.Errorf("--%s or CUSTODEX_KEY is required", keyFlagName)
	}
	signer, err := crypto.FromPrivateKeyHex(key)
	if err != nil {
		return nil, nil, err
	}
	chainID, _ := cmd.Flags().GetInt64(chainIDFlagName)
	return signer, transaction.NewVerifier(crypto.NewDomain(big.NewInt(chainID))), nil
}

func commonFlags(cmd *cobra.Command) (asset.Ticker, num.Uint, uint64, error) {
	tickerStr, _ := cmd.Flags().GetString(tickerFlagName)
	ticker, err := asset.ParseTicker(tickerStr)
	if err != nil {
		return ticker, num.Zero, 0, err
	}
	amountStr, _ := cmd.Flags().GetString(amountFlagName)
	amount, err := num.UintFromString(amountStr)
	if err != nil {
		return ticker, num.Zero, 0, fmt.Errorf("invalid --%s: %w", amountFlagName, err)
	}
	nonce, _ := cmd.Flags().GetUint64(nonceFlagName)
	return ticker, amount, nonce, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
