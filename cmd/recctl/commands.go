package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/voltx/rec-hub/internal/adapter/grpc/server"
	"github.com/voltx/rec-hub/internal/adapter/http/fiber/handlers"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/service/auth"
)

type command func(ctx context.Context, args []string) error

type cli struct {
	api      *apiClient
	grpcAddr string
	timeout  time.Duration
	log      *zap.Logger
}

func (c *cli) commands() map[string]command {
	return map[string]command{
		"info":       c.info,
		"facilities": c.facilities,
		"balance":    c.balance,
		"register":   c.register,
		"mint":       c.mint,
		"seed":       c.seed,
		"watch":      c.watch,
		"hash-key":   c.hashKey,
	}
}

func (c *cli) info(ctx context.Context, args []string) error {
	var info domain.TokenInfo
	if err := c.api.get("/token", &info); err != nil {
		return err
	}
	return printJSON(info)
}

func (c *cli) facilities(ctx context.Context, args []string) error {
	var out struct {
		Facilities []domain.Facility `json:"facilities"`
	}
	if err := c.api.get("/facilities", &out); err != nil {
		return err
	}
	return printJSON(out.Facilities)
}

func (c *cli) balance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: recctl balance <address>")
	}
	account, err := domain.ParseAddress(fs.Arg(0))
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(c.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.grpcAddr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(c.outgoing(ctx), c.timeout)
	defer cancel()
	balance, err := server.NewLedgerClient(conn).GetBalance(ctx, account)
	if err != nil {
		return err
	}
	return printJSON(balance)
}

// outgoing forwards the CLI credentials as gRPC metadata.
func (c *cli) outgoing(ctx context.Context) context.Context {
	switch {
	case c.api.apiKey != "":
		return metadata.AppendToOutgoingContext(ctx, "x-api-key", c.api.apiKey)
	case c.api.token != "":
		return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.api.token)
	}
	return ctx
}

func (c *cli) register(ctx context.Context, args []string) error {
	req, err := parseFacilityFlags("register", args)
	if err != nil {
		return err
	}
	var facility domain.Facility
	if err := c.api.post("/facilities", req, &facility); err != nil {
		return err
	}
	return printJSON(facility)
}

func parseFacilityFlags(name string, args []string) (domain.RegisterFacilityRequest, error) {
	var req domain.RegisterFacilityRequest
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&req.ID, "id", "", "facility id")
	fs.StringVar(&req.DisplayName, "name", "", "display name")
	fs.StringVar(&req.Location, "location", "", "location")
	fs.StringVar(&req.EnergyType, "type", "Solar", "energy type")
	fs.Uint64Var(&req.Capacity, "capacity", 0, "nameplate capacity in MW")
	if err := fs.Parse(args); err != nil {
		return req, err
	}
	switch {
	case strings.TrimSpace(req.ID) == "":
		return req, errors.New("-id is required")
	case strings.TrimSpace(req.DisplayName) == "":
		return req, errors.New("-name is required")
	case strings.TrimSpace(req.Location) == "":
		return req, errors.New("-location is required")
	case req.Capacity == 0:
		return req, errors.New("-capacity must be positive")
	}
	return req, nil
}

func (c *cli) mint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	to := fs.String("to", "", "recipient address")
	facility := fs.String("facility", "", "facility id")
	mwh := fs.Uint64("mwh", 0, "generated MWh")
	meta := fs.String("metadata", "", "metadata recorded on the entry")
	_ = fs.Parse(args)

	recipient, err := domain.ParseAddress(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	var entry domain.Entry
	err = c.api.post("/mint", handlers.MintRequest{
		To:         recipient,
		AmountMWh:  *mwh,
		FacilityID: *facility,
		Metadata:   *meta,
	}, &entry)
	if err != nil {
		return err
	}
	return printJSON(entry)
}

// seed registers a facility unless it already exists, then batch mints the
// same amount to every account.
func (c *cli) seed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	id := fs.String("id", "SOLAR-001", "facility id")
	name := fs.String("name", "", "display name (defaults to the id)")
	location := fs.String("location", "Unspecified", "location")
	kind := fs.String("type", "Solar", "energy type")
	capacity := fs.Uint64("capacity", 100, "nameplate capacity in MW")
	mwh := fs.Uint64("mwh", 10, "MWh minted per account")
	accounts := fs.String("accounts", "", "comma separated recipient addresses")
	_ = fs.Parse(args)
	if *name == "" {
		*name = *id
	}

	err := c.api.post("/facilities", domain.RegisterFacilityRequest{
		ID:          *id,
		DisplayName: *name,
		Location:    *location,
		EnergyType:  *kind,
		Capacity:    *capacity,
	}, nil)
	var apiErr *apiError
	switch {
	case err == nil:
		c.log.Info("Facility registered", zap.String("id", *id))
	case errors.As(err, &apiErr) && apiErr.Kind == string(domain.KindDuplicateFacility):
		c.log.Info("Facility already registered", zap.String("id", *id))
	default:
		return err
	}

	if *accounts == "" {
		return nil
	}
	req := handlers.BatchMintRequest{FacilityID: *id, Metadata: "seed"}
	for _, raw := range strings.Split(*accounts, ",") {
		account, err := domain.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		req.Recipients = append(req.Recipients, account)
		req.AmountsMWh = append(req.AmountsMWh, *mwh)
	}

	var out struct {
		Entries []domain.Entry `json:"entries"`
	}
	if err := c.api.post("/mint/batch", req, &out); err != nil {
		return err
	}
	c.log.Info("Seeded ledger", zap.Int("entries", len(out.Entries)))
	return nil
}

func (c *cli) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	account := fs.String("account", "", "only events touching this account")
	types := fs.String("types", "", "comma separated event types")
	_ = fs.Parse(args)

	target, err := eventsURL(c.api.baseURL, *account, *types)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	c.log.Info("Watching ledger events", zap.String("url", target))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		fmt.Fprintln(os.Stdout, string(msg))
	}
}

// eventsURL maps the REST base URL to the websocket event stream.
func eventsURL(base, account, types string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/events"
	q := url.Values{}
	if account != "" {
		q.Set("account", account)
	}
	if types != "" {
		q.Set("types", types)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *cli) hashKey(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: recctl hash-key <id>.<secret>")
	}
	if !strings.Contains(args[0], ".") {
		return errors.New("api keys have the form <id>.<secret>")
	}
	hash, err := auth.HashAPIKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
