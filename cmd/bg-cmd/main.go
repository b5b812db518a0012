package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	bg "github.com/oreoft/bg-cmd"
	"go.uber.org/zap"
)

const usage = `usage: bg-cmd <command> <subcommand> [arguments]

commands:
  auth login      log in by scanning a qr code
  auth logout     remove the stored credentials
  auth status     show whether a session is stored
  auth refresh    refresh the session cookies if needed
  market list     list current marketplace listings  (-pages)
  market publish  publish an inventory item          (-item, -price)
  market buy      buy listed items                   (-max-price, -name, -pages)
`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run", uuid.NewString()[:8]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := bg.NewCredentialStore("")
	client, err := bg.NewClient(nil, "", logger, store)
	if err != nil {
		logger.Fatal("init client", zap.Error(err))
	}

	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[3:]

	var cmdErr error
	switch os.Args[1] + " " + os.Args[2] {
	case "auth login":
		cmdErr = runAuthLogin(ctx, client)
	case "auth logout":
		cmdErr = runAuthLogout(store)
	case "auth status":
		runAuthStatus(store)
		return
	case "auth refresh":
		cmdErr = client.RefreshCookies(ctx)
	case "market list":
		cmdErr = runMarketList(ctx, client, args)
	case "market publish":
		cmdErr = runMarketPublish(ctx, client, args)
	case "market buy":
		cmdErr = runMarketBuy(ctx, client, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if cmdErr != nil {
		logger.Fatal("command failed", zap.Error(cmdErr))
	}
}

func runAuthLogin(ctx context.Context, client *bg.Client) error {
	cred, err := client.Login(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as user %s\n", cred.UserID)
	return nil
}

func runAuthLogout(store *bg.CredentialStore) error {
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func runAuthStatus(store *bg.CredentialStore) {
	cred, err := store.Load()
	if err == nil && cred != nil {
		fmt.Printf("logged in as user %s\n", cred.UserID)
		return
	}
	fmt.Println("not logged in")
	os.Exit(1)
}

func runMarketList(ctx context.Context, client *bg.Client, args []string) error {
	fs := flag.NewFlagSet("market list", flag.ExitOnError)
	pages := fs.Int("pages", 1, "number of pages to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := client.EnsureValidSession(ctx); err != nil {
		return err
	}

	items, err := fetchPages(ctx, client, *pages)
	if err != nil {
		return err
	}

	for _, item := range items {
		fmt.Printf("%d\t%s\t%s (market %s)\n", item.ID, item.Price, item.Name, item.MarketPrice)
	}
	fmt.Printf("%d items\n", len(items))
	return nil
}

func runMarketPublish(ctx context.Context, client *bg.Client, args []string) error {
	fs := flag.NewFlagSet("market publish", flag.ExitOnError)
	item := fs.Int64("item", 0, "inventory item id to publish")
	price := fs.String("price", "", "listing price in yuan, e.g. 12.5")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *item == 0 || *price == "" {
		fmt.Fprintln(os.Stderr, "market publish requires -item and -price")
		os.Exit(2)
	}

	priceFen, err := bg.ParsePriceFen(*price)
	if err != nil {
		return err
	}

	if err := client.EnsureValidSession(ctx); err != nil {
		return err
	}

	if err := client.PublishItem(ctx, *item, priceFen); err != nil {
		return err
	}

	fmt.Printf("published item %d at %s\n", *item, bg.FormatPriceFen(priceFen))
	return nil
}

func runMarketBuy(ctx context.Context, client *bg.Client, args []string) error {
	fs := flag.NewFlagSet("market buy", flag.ExitOnError)
	maxPrice := fs.String("max-price", "", "only buy items at or below this yuan price")
	name := fs.String("name", "", "only buy items whose name contains this text")
	pages := fs.Int("pages", 1, "number of listing pages to scan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var filters []bg.Filter
	if *maxPrice != "" {
		limit, err := bg.ParsePriceFen(*maxPrice)
		if err != nil {
			return err
		}
		filters = append(filters, bg.MaxPriceFen(limit))
	}
	if *name != "" {
		filters = append(filters, bg.NameContains(*name))
	}

	if err := client.EnsureValidSession(ctx); err != nil {
		return err
	}

	items, err := fetchPages(ctx, client, *pages)
	if err != nil {
		return err
	}

	bought, err := client.BuyItems(ctx, items, filters...)
	fmt.Printf("bought %d items\n", bought)
	return err
}

func fetchPages(ctx context.Context, client *bg.Client, pages int) ([]*bg.MarketItem, error) {
	var items []*bg.MarketItem

	nextID := ""
	for page := 0; page < pages; page++ {
		result, err := client.ListMarketItems(ctx, nextID)
		if err != nil {
			return nil, err
		}

		items = append(items, result.Items...)
		if result.NextID == "" {
			break
		}
		nextID = result.NextID
	}

	return items, nil
}
