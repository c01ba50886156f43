package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paaavkata/coinbase-mirror/internal/checkpoint"
	"github.com/paaavkata/coinbase-mirror/internal/collector"
	"github.com/paaavkata/coinbase-mirror/internal/config"
	mirrorDB "github.com/paaavkata/coinbase-mirror/internal/database"
	"github.com/paaavkata/coinbase-mirror/internal/lock"
	"github.com/paaavkata/coinbase-mirror/internal/model"
	"github.com/paaavkata/coinbase-mirror/internal/orders"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/database"
	"github.com/paaavkata/coinbase-mirror/pkg/utils"
	"github.com/sirupsen/logrus"
)

const usageText = `Usage:
  cbctl currencies [--crypto]
  cbctl products
  cbctl book   --pair BTC-USD [--level 1]
  cbctl price  --pair BTC-USD [--direction mid|bid|ask]
  cbctl place  --pair BTC-USD --side buy|sell --type limit|market --size N [--price N]
  cbctl cancel --id ORDER_ID
  cbctl sync   [--pair BTC-USD] [--granularity 300]
  cbctl status [--pair BTC-USD] [--granularity 300]

Configuration is read from the environment and an optional .env file.
`

type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	client *coinbase.Client
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Print(usageText)
		return
	}

	logger := utils.NewLogger("cbctl")
	cfg := config.Load()

	client, err := coinbase.NewClient(cfg.Coinbase, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Coinbase client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger, client: client}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.WithError(err).Error("Command failed")
		stop()
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "currencies":
		return a.currencies(ctx, args)
	case "products":
		return a.products(ctx)
	case "book":
		return a.book(ctx, args)
	case "price":
		return a.price(ctx, args)
	case "place":
		return a.place(ctx, args)
	case "cancel":
		return a.cancel(ctx, args)
	case "sync":
		return a.sync(ctx, args)
	case "status":
		return a.status(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) currencies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("currencies", flag.ContinueOnError)
	crypto := fs.Bool("crypto", false, "Only list crypto currency ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *crypto {
		ids, err := a.client.ListCryptoCurrencies(ctx)
		if err != nil {
			return err
		}
		return printJSON(ids)
	}

	currencies, err := a.client.ListCurrencies(ctx)
	if err != nil {
		return err
	}
	return printJSON(currencies)
}

func (a *app) products(ctx context.Context) error {
	products, err := a.client.ListProducts(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return printJSON(ids)
}

func (a *app) book(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	pair := fs.String("pair", a.cfg.Pair, "Trading pair")
	level := fs.Int("level", 1, "Book level (1, 2 or 3)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	book, err := a.client.GetOrderBook(ctx, *pair, *level)
	if err != nil {
		return err
	}
	return printJSON(book)
}

func (a *app) price(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	pair := fs.String("pair", a.cfg.Pair, "Trading pair")
	direction := fs.String("direction", "mid", "mid, bid or ask")
	if err := fs.Parse(args); err != nil {
		return err
	}

	price, err := a.client.GetSpotPrice(ctx, *pair, *direction)
	if err != nil {
		return err
	}
	return printJSON(price)
}

func (a *app) place(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("place", flag.ContinueOnError)
	pair := fs.String("pair", a.cfg.Pair, "Trading pair")
	side := fs.String("side", "", "buy or sell")
	orderType := fs.String("type", orders.TypeLimit, "limit or market")
	size := fs.String("size", "", "Order size in the base currency")
	price := fs.String("price", "", "Limit price")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := orders.OrderParams{Side: *side, Type: *orderType, Pair: *pair}

	var err error
	if params.Size, err = utils.ParseDecimal(*size); err != nil {
		return fmt.Errorf("%w: size: %v", orders.ErrValidation, err)
	}
	if *price != "" {
		if params.Price, err = utils.ParseDecimal(*price); err != nil {
			return fmt.Errorf("%w: price: %v", orders.ErrValidation, err)
		}
	}

	handle, err := orders.NewService(a.client, a.logger).Place(ctx, params)
	if err != nil {
		return err
	}
	return printJSON(handle)
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.String("id", "", "Exchange order id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := orders.NewService(a.client, a.logger).Cancel(ctx, orders.OrderHandle{ID: *id})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) openRepository() (*database.DB, *mirrorDB.Repository, error) {
	db, err := database.NewConnection(a.cfg.Database.DbUri, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return db, mirrorDB.NewRepository(db, checkpoint.NewStore(db, a.logger), a.logger), nil
}

func (a *app) sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	pair := fs.String("pair", a.cfg.Pair, "Trading pair")
	granularity := fs.Int64("granularity", a.cfg.Granularity, "Candle granularity in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, repo, err := a.openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx); err != nil {
		return err
	}

	scheduler := collector.NewScheduler(
		collector.NewCandleSync(a.cfg.Exchange, a.client, repo, a.logger),
		collector.NewTradeSync(a.cfg.Exchange, a.client, repo, a.logger),
		lock.NewMemoryLocker(),
		nil,
		collector.ScheduleConfig{
			Exchange:    a.cfg.Exchange,
			Pair:        *pair,
			Granularity: *granularity,
		},
		a.logger,
	)
	return scheduler.RunOnce(ctx)
}

func (a *app) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	pair := fs.String("pair", a.cfg.Pair, "Trading pair")
	granularity := fs.Int64("granularity", a.cfg.Granularity, "Candle granularity in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, repo, err := a.openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	out := make(map[string]*model.Checkpoint, 2)
	for _, key := range []model.SeriesKey{
		model.CandleSeries(a.cfg.Exchange, *pair, *granularity),
		model.TradeSeries(a.cfg.Exchange, *pair),
	} {
		cp, err := repo.LatestCheckpoint(ctx, key)
		if err != nil {
			return err
		}
		out[key.String()] = cp
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
