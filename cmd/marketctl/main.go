// marketctl drives a marketd instance over its HTTP API.
//
// Usage:
//
//	marketctl token -config configs/marketd.example.yaml -account alice
//	marketctl [-url URL] [-token TOKEN] <command> [flags]
//
// The token defaults to $MARKET_TOKEN. Commands print the JSON response.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/escrow-market/internal/api"
	"github.com/rickgao/escrow-market/internal/auth"
	"github.com/rickgao/escrow-market/internal/config"
	"github.com/rickgao/escrow-market/internal/model"
)

const usage = `usage: marketctl [-url URL] [-token TOKEN] <command> [flags]

commands:
  token         sign an access token for an account
  open          open an auction         (-class -token-id -price -delay -duration)
  bid           bid on an auction       (-class -token-id -price)
  claim         claim an ended auction  (-class -token-id)
  cancel        cancel an auction       (-class -token-id)
  offer         offer a rental          (-class -token-id -price -collateral -duration)
  rent          rent an offer           (-class -token-id)
  repay         return a rented asset   (-class -token-id)
  liquidate     seize overdue collateral (-class -token-id)
  cancel-offer  withdraw a rental offer (-class -token-id)
  auction       show one or all auctions  ([-class -token-id])
  rental        show one or all rentals   ([-class -token-id])
  balance       show an account balance   (-account)
  tokens        list an account's assets  (-account)
  supply        show the total supply
  class         show an asset class       (-class)
  create-class  create a class you own    ([-metadata])
  mint          mint into your class      (-class [-owner -metadata])
  burn          destroy a token you hold  (-class -token-id)
  destroy-class remove your empty class   (-class)
  custodian     show the escrow account
  health        show server health
`

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "marketd base URL")
	token := flag.String("token", os.Getenv("MARKET_TOKEN"), "bearer token")
	verbose := flag.Bool("verbose", false, "log requests")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := api.NewClient(*baseURL, *token,
		api.WithLogger(logger),
		api.WithTimeout(30*time.Second),
		api.WithRetries(3, time.Second),
	)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	out, err := dispatch(ctx, client, cmd, args)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "%s (%d): %s\n", apiErr.Code, apiErr.StatusCode, apiErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
	if out == nil {
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// assetFlags registers the flags naming one asset.
type assetFlags struct {
	class *uint64
	token *uint64
}

func newAssetFlags(fs *flag.FlagSet) assetFlags {
	return assetFlags{
		class: fs.Uint64("class", 0, "class id"),
		token: fs.Uint64("token-id", 0, "token id"),
	}
}

func (a assetFlags) asset() model.AssetID {
	return model.AssetID{Class: *a.class, Token: *a.token}
}

// set reports whether either id was given explicitly.
func set(fs *flag.FlagSet, names ...string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		for _, n := range names {
			if f.Name == n {
				found = true
			}
		}
	})
	return found
}

func dispatch(ctx context.Context, c *api.Client, cmd string, args []string) (any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	asset := newAssetFlags(fs)

	switch cmd {
	case "token":
		return signToken(args)

	case "open":
		price := fs.Uint64("price", 0, "base price")
		delay := fs.Uint64("delay", 0, "seconds until bidding opens")
		duration := fs.Uint64("duration", 3600, "seconds bidding stays open")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.OpenAuction(ctx, api.OpenAuctionRequest{
			ClassID:     *asset.class,
			TokenID:     *asset.token,
			BasePrice:   *price,
			Delay:       *delay,
			BidDuration: *duration,
		})

	case "bid":
		price := fs.Uint64("price", 0, "bid price")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.Bid(ctx, asset.asset(), *price)

	case "offer":
		price := fs.Uint64("price", 0, "rent price")
		collateral := fs.Uint64("collateral", 0, "collateral")
		duration := fs.Uint64("duration", 86400, "rental term in seconds")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.OfferRental(ctx, api.OfferRentalRequest{
			ClassID:    *asset.class,
			TokenID:    *asset.token,
			Duration:   *duration,
			Collateral: *collateral,
			Price:      *price,
		})

	case "rent":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.Rent(ctx, asset.asset())

	case "claim", "cancel", "repay", "liquidate", "cancel-offer":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		actions := map[string]func(context.Context, model.AssetID) error{
			"claim":        c.Claim,
			"cancel":       c.CancelAuction,
			"repay":        c.Repay,
			"liquidate":    c.Liquidate,
			"cancel-offer": c.CancelRental,
		}
		if err := actions[cmd](ctx, asset.asset()); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "ok"}, nil

	case "auction":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if set(fs, "class", "token-id") {
			return c.Auction(ctx, asset.asset())
		}
		return c.Auctions(ctx)

	case "rental":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if set(fs, "class", "token-id") {
			return c.Rental(ctx, asset.asset())
		}
		return c.Rentals(ctx)

	case "balance", "tokens":
		account := fs.String("account", "", "account name or id")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if *account == "" {
			return nil, errors.New("-account is required")
		}
		if cmd == "balance" {
			return c.Balance(ctx, *account)
		}
		return c.Tokens(ctx, *account)

	case "supply":
		return c.Supply(ctx)

	case "class":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.Class(ctx, *asset.class)

	case "create-class":
		metadata := fs.String("metadata", "", "class metadata")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.CreateClass(ctx, []byte(*metadata))

	case "mint":
		owner := fs.String("owner", "", "recipient name or id (default: caller)")
		metadata := fs.String("metadata", "", "token metadata")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return c.Mint(ctx, *asset.class, api.MintRequest{Owner: *owner, Metadata: []byte(*metadata)})

	case "burn", "destroy-class":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		var err error
		if cmd == "burn" {
			err = c.Burn(ctx, asset.asset())
		} else {
			err = c.DestroyClass(ctx, *asset.class)
		}
		if err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "ok"}, nil

	case "custodian":
		return c.Custodian(ctx)

	case "health":
		return c.Health(ctx)
	}

	return nil, fmt.Errorf("unknown command %q", cmd)
}

// signToken prints a token for an account using the configured private key.
func signToken(args []string) (any, error) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", "configs/marketd.example.yaml", "path to config file")
	account := fs.String("account", "", "account name or id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *account == "" {
		return nil, errors.New("-account is required")
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.PrivateKeyPath == "" {
		return nil, errors.New("auth.private_key_path is not configured")
	}

	issuer, err := auth.LoadIssuer(cfg.Auth.Issuer, cfg.Auth.PrivateKeyPath, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	id := model.ResolveAccountID(*account)
	token, err := issuer.SignToken(id)
	if err != nil {
		return nil, err
	}

	return struct {
		Account string `json:"account"`
		Token   string `json:"token"`
		Expires string `json:"expires"`
	}{
		Account: id.String(),
		Token:   token,
		Expires: time.Now().Add(cfg.Auth.TokenTTL).UTC().Format(time.RFC3339),
	}, nil
}
