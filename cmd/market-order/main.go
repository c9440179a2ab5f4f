// Command market-order creates, signs and verifies an order entirely
// locally: generate a keypair, build an order against a market contract,
// hash and sign it, check the signature recovers, and print the signed
// order as JSON ready for submission.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/order"
)

func main() {
	var (
		keyHex   = flag.String("key", "", "hex private key of the maker; generates a fresh key when empty")
		contract = flag.String("contract", "0x0000000000000000000000000000000000000001", "market contract address")
		qty      = flag.Int64("qty", 10, "order quantity, positive buys, negative sells")
		price    = flag.Int64("price", 55000, "limit price in contract price units")
		expiry   = flag.Duration("expiry", time.Hour, "time until the order expires")
	)
	flag.Parse()

	if err := run(*keyHex, *contract, *qty, *price, *expiry); err != nil {
		fmt.Fprintf(os.Stderr, "market-order: %v\n", err)
		os.Exit(1)
	}
}

func run(keyHex, contract string, qty, price int64, expiry time.Duration) error {
	ctx := context.Background()

	var (
		signer *order.KeySigner
		err    error
	)
	if keyHex == "" {
		fmt.Println("Generating new keypair...")
		signer, err = order.NewKeySigner()
		if err != nil {
			return err
		}
		fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	} else {
		signer, err = order.KeySignerFromHex(keyHex)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Maker: %s\n\n", signer.Address().Hex())

	contractAddr, err := order.ParseAddress("contract", contract)
	if err != nil {
		return err
	}

	oracle := order.LocalHashOracle{}
	expirationTimestamp := big.NewInt(time.Now().Add(expiry).Unix())

	signed, err := order.CreateSignedOrder(ctx, oracle, signer,
		contractAddr, expirationTimestamp, common.Address{},
		signer.Address(), big.NewInt(0), common.Address{}, big.NewInt(0),
		big.NewInt(qty), big.NewInt(price), big.NewInt(qty), order.GenerateSalt())
	if err != nil {
		return err
	}

	hash, err := order.ComputeOrderHash(ctx, oracle, &signed.Order)
	if err != nil {
		return err
	}
	fmt.Printf("Order Hash: %s\n", hash.Hex())

	valid, err := order.VerifySignature(ctx, oracle, signed, hash)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("signature did not recover to maker %s", signed.Maker.Hex())
	}
	fmt.Println("Signature OK")

	out, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("\nSigned Order (JSON):")
	fmt.Println(string(out))
	return nil
}
