package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/handlers"
	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/adapter/storage/memory"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/mocks"
	"github.com/voltx/rec-hub/internal/service/ledger"
)

var owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func startAPI(t *testing.T) (*cli, *ledger.Service) {
	t.Helper()
	svc := ledger.NewService(ledger.Config{InitialOwner: owner}, memory.NewStore(zap.NewNop()), zap.NewNop())
	require.NoError(t, svc.Restore(context.Background()))

	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	handlers.RegisterRoutes(app, handlers.RouterConfig{
		Ledger: svc,
		Auth:   mocks.NewMockAuthService(),
		Cache:  mocks.NewMockCache(),
		Log:    zap.NewNop(),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &cli{
		api: &apiClient{
			baseURL: "http://" + ln.Addr().String(),
			token:   mocks.TokenFor(owner),
			timeout: 5 * time.Second,
		},
		timeout: 5 * time.Second,
		log:     zap.NewNop(),
	}, svc
}

func TestSeed_RegistersAndMints(t *testing.T) {
	// Arrange
	c, svc := startAPI(t)
	alice := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	args := []string{"-id", "HYDRO-9", "-type", "Hydro", "-mwh", "3", "-accounts", alice.Hex() + "," + bob.Hex()}

	// Act
	require.NoError(t, c.seed(context.Background(), args))
	require.NoError(t, c.seed(context.Background(), []string{"-id", "HYDRO-9", "-type", "Hydro"}))

	// Assert
	assert.Equal(t, 1, svc.FacilityCount(context.Background()))
	facility, err := svc.GetFacility(context.Background(), "HYDRO-9")
	require.NoError(t, err)
	assert.Equal(t, "Unspecified", facility.Location)
	assert.Equal(t, "3000000000000000000", svc.BalanceOf(context.Background(), bob).String())
	assert.Equal(t, uint64(2), svc.EntryCount(context.Background()))
}

func TestParseFacilityFlags(t *testing.T) {
	complete := []string{"-id", "WIND-7", "-name", "Ridge", "-location", "Natal, BR", "-type", "Wind", "-capacity", "40"}

	req, err := parseFacilityFlags("register", complete)
	require.NoError(t, err)
	assert.Equal(t, domain.RegisterFacilityRequest{
		ID: "WIND-7", DisplayName: "Ridge", Location: "Natal, BR", EnergyType: "Wind", Capacity: 40,
	}, req)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing id", []string{"-name", "Ridge", "-location", "Natal", "-capacity", "40"}, "-id"},
		{"missing name", []string{"-id", "WIND-7", "-location", "Natal", "-capacity", "40"}, "-name"},
		{"missing location", []string{"-id", "WIND-7", "-name", "Ridge", "-capacity", "40"}, "-location"},
		{"zero capacity", []string{"-id", "WIND-7", "-name", "Ridge", "-location", "Natal"}, "-capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFacilityFlags("register", tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAPIClient_DecodesErrors(t *testing.T) {
	c, _ := startAPI(t)
	c.api.token = ""

	err := c.api.post("/mint", handlers.MintRequest{To: owner, AmountMWh: 1, FacilityID: "X"}, nil)

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, fiber.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, string(domain.KindUnauthenticated), apiErr.Kind)
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		base, account, types string
		want                 string
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws/events"},
		{base: "https://rec.example.org/", types: "Minted", want: "wss://rec.example.org/ws/events?types=Minted"},
		{base: "http://h:1", account: "0xabc", want: "ws://h:1/ws/events?account=0xabc"},
	}
	for _, tt := range tests {
		got, err := eventsURL(tt.base, tt.account, tt.types)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestHashKey_RejectsMalformed(t *testing.T) {
	c := &cli{log: zap.NewNop()}
	assert.Error(t, c.hashKey(context.Background(), []string{"nodot"}))
	assert.Error(t, c.hashKey(context.Background(), nil))
}
