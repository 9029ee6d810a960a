// Example usage of the mint SDK: inspect a product, prepare a purchase and execute it
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	mintsdk "github.com/kaifufi/mint-sdk-go"
	"github.com/kaifufi/mint-sdk-go/journal"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	config := mintsdk.ClientConfig{
		Networks: map[mintsdk.NetworkID]mintsdk.Network{
			mintsdk.NetworkBase: {RPCURL: "https://mainnet.base.org"}, // Replace with your RPC URL
		},
		AllowlistHost: "https://apps.api.manifoldxyz.dev/public",
		Logger:        logger,
	}
	if path := os.Getenv("MINTSDK_CONFIG"); path != "" {
		fileConfig, err := mintsdk.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if config, err = fileConfig.ClientConfig(); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
		config.Logger = logger
	}

	store, err := journal.Open("orders.db")
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	config.Journal = store

	client, err := mintsdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	product, err := client.Product(
		mintsdk.FamilyEdition,
		mintsdk.NetworkBase,
		common.HexToAddress("0x0000000000000000000000000000000000000001"), // Replace with the creator contract
		big.NewInt(1), // Replace with the claim instance id
	)
	if err != nil {
		log.Fatalf("Invalid product: %v", err)
	}

	status, err := client.GetStatus(ctx, product, true)
	if err != nil {
		log.Fatalf("Failed to read claim: %v", err)
	}
	fmt.Printf("Status: %s\n", status)

	cost, err := client.GetCost(ctx, product, 2)
	if err != nil {
		log.Fatalf("Failed to price product: %v", err)
	}
	for _, token := range cost.Tokens() {
		fmt.Printf("Cost for 2: %s\n", cost.PerToken[token])
	}

	account, err := client.DialAccount(ctx, os.Getenv("PRIVATE_KEY"))
	if err != nil {
		log.Fatalf("Failed to load account: %v", err)
	}
	defer account.Close()

	alloc, err := client.GetAllocation(ctx, product, account.Address())
	if err != nil {
		log.Fatalf("Failed to compute allocation: %v", err)
	}
	if !alloc.IsEligible {
		fmt.Printf("Not eligible: %s\n", alloc.Reason)
		return
	}

	prepared, err := client.PreparePurchase(ctx, mintsdk.PurchaseRequest{
		Product:  product,
		Wallet:   account.Address(),
		Quantity: 2,
	})
	var fundsErr *mintsdk.InsufficientFundsError
	switch {
	case errors.As(err, &fundsErr):
		log.Fatalf("Top up first: need %s, have %s", fundsErr.Required, fundsErr.Available)
	case err != nil:
		log.Fatalf("Failed to prepare purchase: %v", err)
	}

	for _, step := range prepared.Steps {
		fmt.Printf("Step %s: %s (gas %d)\n", step.Kind, step.Description, step.Request.Gas)
	}

	execution, err := client.PurchaseEvents(ctx, prepared, account)
	if err != nil {
		log.Fatalf("Failed to start purchase: %v", err)
	}
	for event := range execution.Events() {
		fmt.Printf("[%d/%d] %s %s %s\n", event.Index+1, event.Total, event.Kind, event.Type, event.TxHash.Hex())
	}

	order, err := execution.Result()
	if err != nil {
		fmt.Printf("Order %s is %s: %v\n", order.ID, order.Status, err)
		if order.Status == mintsdk.OrderPartial {
			if order, err = client.Resume(ctx, order, account); err != nil {
				log.Fatalf("Resume failed: %v", err)
			}
		}
	}
	fmt.Printf("Order %s %s with %d receipts\n", order.ID, order.Status, len(order.Receipts))
}
