package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mintbay/gomart/pkg/sdk/api"
	"github.com/mintbay/gomart/pkg/wallet"
)

const usage = `marketctl - command line client for the marketplace server

Usage:
  marketctl <command> [flags]

Commands:
  keys       derive a dev address from the mnemonic
  deposit    fund an address from the dev faucet
  balance    show an address balance
  registry   create a token registry
  registries list registries
  mint       store metadata and mint a token
  list       put a token up for sale
  buy        buy a listed item
  items      show unsold listings
  mine       show items an address bought
  listed     show items an address listed
  receipts   show the operation log
  watch      stream live market events

Environment:
  GOMART_API       server base URL (default http://localhost:8080)
  GOMART_MNEMONIC  BIP-39 mnemonic for the keys command
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	host := os.Getenv("GOMART_API")
	if host == "" {
		host = "http://localhost:8080"
	}
	client := api.NewClient(host)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "keys":
		err = cmdKeys(os.Args[2:])
	case "deposit":
		err = cmdDeposit(ctx, client, os.Args[2:])
	case "balance":
		err = cmdBalance(ctx, client, os.Args[2:])
	case "registry":
		err = cmdRegistryCreate(ctx, client, os.Args[2:])
	case "registries":
		err = cmdRegistries(ctx, client)
	case "mint":
		err = cmdMint(ctx, client, os.Args[2:])
	case "list":
		err = cmdList(ctx, client, os.Args[2:])
	case "buy":
		err = cmdBuy(ctx, client, os.Args[2:])
	case "items":
		err = cmdItems(ctx, client)
	case "mine":
		err = cmdMine(ctx, client, os.Args[2:])
	case "listed":
		err = cmdListed(ctx, client, os.Args[2:])
	case "receipts":
		err = cmdReceipts(ctx, client, os.Args[2:])
	case "watch":
		err = cmdWatch(client)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdKeys(args []string) error {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	index := fs.Int("index", 0, "derivation index")
	showKey := fs.Bool("private", false, "also print the private key")
	_ = fs.Parse(args)

	mnemonic := strings.TrimSpace(os.Getenv("GOMART_MNEMONIC"))
	if mnemonic == "" {
		return fmt.Errorf("GOMART_MNEMONIC is not set")
	}
	if *index < 0 {
		return fmt.Errorf("index must not be negative")
	}
	d, err := wallet.Derive(mnemonic, uint32(*index))
	if err != nil {
		return err
	}
	out := map[string]string{"address": d.Address, "path": d.Path}
	if *showKey {
		out["private_key"] = d.PrivateKeyHex
	}
	return printJSON(out)
}

func cmdDeposit(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	address := fs.String("address", "", "address to fund")
	amount := fs.String("amount", "", "amount to credit")
	_ = fs.Parse(args)

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	bal, err := client.Deposit(ctx, *address, amt)
	if err != nil {
		return err
	}
	return printJSON(bal)
}

func cmdBalance(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	address := fs.String("address", "", "address to query")
	_ = fs.Parse(args)

	bal, err := client.Balance(ctx, *address)
	if err != nil {
		return err
	}
	return printJSON(bal)
}

func cmdRegistryCreate(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("registry", flag.ExitOnError)
	name := fs.String("name", "", "registry name")
	_ = fs.Parse(args)

	reg, err := client.CreateRegistry(ctx, *name)
	if err != nil {
		return err
	}
	return printJSON(reg)
}

func cmdRegistries(ctx context.Context, client *api.Client) error {
	regs, err := client.Registries(ctx)
	if err != nil {
		return err
	}
	return printJSON(regs)
}

func cmdMint(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	registry := fs.String("registry", "", "registry address")
	caller := fs.String("caller", "", "minting address")
	uri := fs.String("uri", "", "token URI (skips metadata upload)")
	name := fs.String("name", "", "metadata: item name")
	desc := fs.String("description", "", "metadata: item description")
	image := fs.String("image", "", "metadata: image URI")
	_ = fs.Parse(args)

	tokenURI := *uri
	if tokenURI == "" {
		if *name == "" {
			return fmt.Errorf("either -uri or -name is required")
		}
		stored, err := client.StoreAddJSON(ctx, api.NFTMetadata{
			Name:        *name,
			Description: *desc,
			Image:       *image,
		})
		if err != nil {
			return fmt.Errorf("store metadata: %w", err)
		}
		tokenURI = stored.URI
	}

	tok, err := client.Mint(ctx, *registry, *caller, tokenURI)
	if err != nil {
		return err
	}
	return printJSON(tok)
}

// cmdList pays whatever the server currently charges, read just before
// listing so the exact-fee check passes.
func cmdList(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	registry := fs.String("registry", "", "registry address")
	tokenID := fs.Int64("token", 0, "token id")
	caller := fs.String("caller", "", "seller address")
	price := fs.String("price", "", "asking price")
	_ = fs.Parse(args)

	p, err := decimal.NewFromString(*price)
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	fee, err := client.ListingFee(ctx)
	if err != nil {
		return err
	}
	item, err := client.CreateItem(ctx, *registry, *tokenID, *caller, p, fee.ListingFee)
	if err != nil {
		return err
	}
	return printJSON(item)
}

// cmdBuy looks the item up in the unsold view to pay its exact price.
func cmdBuy(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	registry := fs.String("registry", "", "registry address")
	itemID := fs.Int64("item", 0, "item id")
	caller := fs.String("caller", "", "buyer address")
	_ = fs.Parse(args)

	unsold, err := client.MarketItems(ctx)
	if err != nil {
		return err
	}
	var price decimal.Decimal
	found := false
	for _, it := range unsold {
		if it.ItemID == *itemID {
			price, found = it.Price, true
			break
		}
	}
	if !found {
		return fmt.Errorf("item %d is not for sale", *itemID)
	}
	item, err := client.Buy(ctx, *registry, *itemID, *caller, price)
	if err != nil {
		return err
	}
	return printJSON(item)
}

func cmdItems(ctx context.Context, client *api.Client) error {
	items, err := client.MarketItems(ctx)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func cmdMine(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	address := fs.String("address", "", "owner address")
	_ = fs.Parse(args)

	items, err := client.MyNFTs(ctx, *address)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func cmdListed(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("listed", flag.ExitOnError)
	address := fs.String("address", "", "seller address")
	_ = fs.Parse(args)

	items, err := client.ItemsListed(ctx, *address)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func cmdReceipts(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("receipts", flag.ExitOnError)
	limit := fs.Int("limit", 50, "max receipts to show")
	_ = fs.Parse(args)

	receipts, err := client.Receipts(ctx, *limit)
	if err != nil {
		return err
	}
	return printJSON(receipts)
}

func cmdWatch(client *api.Client) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	events, err := client.WatchEvents(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "watching market events, Ctrl+C to stop")
	for ev := range events {
		if err := printJSON(ev); err != nil {
			return err
		}
	}
	return nil
}
