package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/adapter/storage/memory"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/mocks"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/internal/service/ledger"
	"github.com/voltx/rec-hub/pkg/config"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type testAPI struct {
	app    *fiber.App
	ledger *ledger.Service
}

func newTestAPI(t *testing.T, store ports.LedgerStore) *testAPI {
	t.Helper()
	if store == nil {
		store = memory.NewStore(zap.NewNop())
	}
	svc := ledger.NewService(ledger.Config{InitialOwner: owner}, store, zap.NewNop(),
		ledger.WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }))
	require.NoError(t, svc.Restore(context.Background()))

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	RegisterRoutes(app, RouterConfig{
		Ledger:      svc,
		Auth:        mocks.NewMockAuthService(),
		Cache:       mocks.NewMockCache(),
		Idempotency: config.IdempotencyConfig{Enabled: true, TTL: time.Hour},
		Log:         zap.NewNop(),
	})
	return &testAPI{app: app, ledger: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, as *domain.Address, body interface{}, headers ...string) (int, map[string]interface{}, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+mocks.TokenFor(*as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out, resp.Header
}

func (a *testAPI) seed(t *testing.T) {
	t.Helper()
	status, body, _ := a.do(t, http.MethodPost, "/api/v1/facilities", &owner, domain.RegisterFacilityRequest{
		ID:          "SOLAR-001",
		DisplayName: "Desert Sun",
		Location:    "Nevada",
		EnergyType:  "solar",
		Capacity:    5000,
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body, _ = a.do(t, http.MethodPost, "/api/v1/mint", &owner, MintRequest{
		To:         alice,
		AmountMWh:  100,
		FacilityID: "SOLAR-001",
		Metadata:   "June batch",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
}

func TestRoutes_RegisterMintAndReadBalance(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)

	// Act
	status, body, _ := api.do(t, http.MethodGet, "/api/v1/accounts/"+alice.Hex(), nil, nil)

	// Assert
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "100000000000000000000", body["active"])
	assert.Equal(t, "100", body["active_tokens"])
	assert.Equal(t, "0", body["retired"])
	assert.EqualValues(t, 1, body["entry_count"])

	status, body, _ = api.do(t, http.MethodGet, "/api/v1/facilities/SOLAR-001", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 100, body["total_generated"])
	assert.Equal(t, "Solar", body["energy_type"])
}

func TestRoutes_WritesRequireCredentials(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body, _ := api.do(t, http.MethodPost, "/api/v1/admin/pause", nil, nil)

	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, string(domain.KindUnauthenticated), body["kind"])
}

func TestRoutes_InvalidBearerRejected(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _, _ := api.do(t, http.MethodGet, "/api/v1/token", nil, nil, "Authorization", "Bearer garbage")

	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRoutes_ErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		as     *domain.Address
		body   interface{}
		status int
		kind   domain.Kind
	}{
		{
			name: "non-owner mint", method: http.MethodPost, path: "/api/v1/mint", as: &alice,
			body:   MintRequest{To: alice, AmountMWh: 1, FacilityID: "SOLAR-001"},
			status: fiber.StatusForbidden, kind: domain.KindUnauthorized,
		},
		{
			name: "unknown facility", method: http.MethodGet, path: "/api/v1/facilities/NOPE",
			status: fiber.StatusNotFound, kind: domain.KindUnknownFacility,
		},
		{
			name: "duplicate facility", method: http.MethodPost, path: "/api/v1/facilities", as: &owner,
			body:   domain.RegisterFacilityRequest{ID: "SOLAR-001", DisplayName: "Again", Location: "Utah", EnergyType: "Solar", Capacity: 10},
			status: fiber.StatusConflict, kind: domain.KindDuplicateFacility,
		},
		{
			name: "facility without capacity", method: http.MethodPost, path: "/api/v1/facilities", as: &owner,
			body:   domain.RegisterFacilityRequest{ID: "WIND-001", DisplayName: "Ridge", Location: "Utah", EnergyType: "Wind"},
			status: fiber.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "facility without display name", method: http.MethodPost, path: "/api/v1/facilities", as: &owner,
			body:   domain.RegisterFacilityRequest{ID: "WIND-001", DisplayName: " ", Location: "Utah", EnergyType: "Wind", Capacity: 10},
			status: fiber.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "facility without location", method: http.MethodPost, path: "/api/v1/facilities", as: &owner,
			body:   domain.RegisterFacilityRequest{ID: "WIND-001", DisplayName: "Ridge", EnergyType: "Wind", Capacity: 10},
			status: fiber.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "insufficient balance", method: http.MethodPost, path: "/api/v1/transfer", as: &bob,
			body:   map[string]interface{}{"to": alice.Hex(), "tokens": "1"},
			status: fiber.StatusUnprocessableEntity, kind: domain.KindInsufficientBalance,
		},
		{
			name: "missing retirement reason", method: http.MethodPost, path: "/api/v1/retire", as: &alice,
			body:   map[string]interface{}{"tokens": "1"},
			status: fiber.StatusUnprocessableEntity, kind: domain.KindMissingReason,
		},
		{
			name: "zero amount", method: http.MethodPost, path: "/api/v1/burn", as: &alice,
			body:   map[string]interface{}{"amount": "0"},
			status: fiber.StatusBadRequest, kind: domain.KindInvalidAmount,
		},
		{
			name: "bad address", method: http.MethodGet, path: "/api/v1/accounts/not-an-address",
			status: fiber.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "entry out of range", method: http.MethodGet, path: "/api/v1/entries/99",
			status: fiber.StatusNotFound, kind: domain.KindUnknownEntry,
		},
		{
			name: "certificate of a transfer", method: http.MethodGet, path: "/api/v1/certificates/1",
			status: fiber.StatusBadRequest, kind: domain.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			api := newTestAPI(t, nil)
			api.seed(t)
			status, body, _ := api.do(t, http.MethodPost, "/api/v1/transfer", &alice,
				map[string]interface{}{"to": bob.Hex(), "tokens": "0.5"})
			require.Equal(t, fiber.StatusOK, status, body)

			// Act
			status, body, _ = api.do(t, tt.method, tt.path, tt.as, tt.body)

			// Assert
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, string(tt.kind), body["kind"])
		})
	}
}

func TestRoutes_PausedLedgerIsLocked(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)
	status, _, _ := api.do(t, http.MethodPost, "/api/v1/admin/pause", &owner, nil)
	require.Equal(t, fiber.StatusOK, status)

	// Act
	status, body, _ := api.do(t, http.MethodPost, "/api/v1/transfer", &alice,
		map[string]interface{}{"to": bob.Hex(), "tokens": "1"})

	// Assert
	assert.Equal(t, fiber.StatusLocked, status)
	assert.Equal(t, string(domain.KindSystemPaused), body["kind"])

	_, info, _ := api.do(t, http.MethodGet, "/api/v1/token", nil, nil)
	assert.Equal(t, true, info["paused"])
}

func TestRoutes_IdempotentTransferIsReplayed(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)
	body := map[string]interface{}{"to": bob.Hex(), "tokens": "2.5"}

	// Act
	first, firstBody, firstHeaders := api.do(t, http.MethodPost, "/api/v1/transfer", &alice, body, middleware.IdempotencyHeader, "transfer-42")
	second, secondBody, secondHeaders := api.do(t, http.MethodPost, "/api/v1/transfer", &alice, body, middleware.IdempotencyHeader, "transfer-42")

	// Assert
	require.Equal(t, fiber.StatusOK, first, firstBody)
	assert.Equal(t, first, second)
	assert.Equal(t, firstBody, secondBody)
	assert.Empty(t, firstHeaders.Get(middleware.ReplayedHeader))
	assert.Equal(t, "true", secondHeaders.Get(middleware.ReplayedHeader))
	assert.Equal(t, uint64(2), api.ledger.EntryCount(context.Background()))
	assert.Equal(t, "2500000000000000000", api.ledger.BalanceOf(context.Background(), bob).String())
}

func TestRoutes_IdempotencyKeyIsScopedToCaller(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t)
	_, _, _ = api.do(t, http.MethodPost, "/api/v1/transfer", &alice,
		map[string]interface{}{"to": bob.Hex(), "tokens": "10"}, middleware.IdempotencyHeader, "shared")

	status, body, headers := api.do(t, http.MethodPost, "/api/v1/transfer", &bob,
		map[string]interface{}{"to": alice.Hex(), "tokens": "1"}, middleware.IdempotencyHeader, "shared")

	require.Equal(t, fiber.StatusOK, status, body)
	assert.Empty(t, headers.Get(middleware.ReplayedHeader))
	assert.Equal(t, uint64(3), api.ledger.EntryCount(context.Background()))
}

func TestRoutes_ApproveAndTransferFrom(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)
	status, _, _ := api.do(t, http.MethodPost, "/api/v1/approve", &alice,
		map[string]interface{}{"spender": bob.Hex(), "tokens": "5"})
	require.Equal(t, fiber.StatusOK, status)

	// Act
	status, body, _ := api.do(t, http.MethodPost, "/api/v1/transfer-from", &bob,
		map[string]interface{}{"from": alice.Hex(), "to": bob.Hex(), "tokens": "3"})

	// Assert
	require.Equal(t, fiber.StatusOK, status, body)
	_, allowance, _ := api.do(t, http.MethodGet, "/api/v1/accounts/"+alice.Hex()+"/allowances/"+bob.Hex(), nil, nil)
	assert.Equal(t, "2000000000000000000", allowance["amount"])
}

func TestRoutes_RetireAndCertificate(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)

	// Act
	status, body, _ := api.do(t, http.MethodPost, "/api/v1/retire", &alice,
		map[string]interface{}{"tokens": "40", "reason": "2024 Scope 2 claim"})

	// Assert
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "retire", body["kind"])
	assert.Equal(t, "2024 Scope 2 claim", body["metadata"])

	_, balance, _ := api.do(t, http.MethodGet, "/api/v1/accounts/"+alice.Hex(), nil, nil)
	assert.Equal(t, "60", balance["active_tokens"])
	assert.Equal(t, "40", balance["retired_tokens"])

	status, cert, _ := api.do(t, http.MethodGet, "/api/v1/certificates/0", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	facility := cert["facility"].(map[string]interface{})
	assert.Equal(t, "SOLAR-001", facility["id"])
}

func TestRoutes_AccountEntriesArePaged(t *testing.T) {
	// Arrange
	api := newTestAPI(t, nil)
	api.seed(t)
	for i := 0; i < 3; i++ {
		status, body, _ := api.do(t, http.MethodPost, "/api/v1/transfer", &alice,
			map[string]interface{}{"to": bob.Hex(), "tokens": "1"})
		require.Equal(t, fiber.StatusOK, status, body)
	}

	// Act
	status, page, _ := api.do(t, http.MethodGet, "/api/v1/accounts/"+bob.Hex()+"/entries?offset=1&limit=5", nil, nil)

	// Assert
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 3, page["total"])
	items := page["items"].([]interface{})
	require.Len(t, items, 2)
	assert.EqualValues(t, 2, items[0].(map[string]interface{})["index"])
	assert.EqualValues(t, 3, items[1].(map[string]interface{})["index"])
}

func TestRoutes_BatchMint(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t)

	status, body, _ := api.do(t, http.MethodPost, "/api/v1/mint/batch", &owner, BatchMintRequest{
		Recipients: []domain.Address{alice, bob},
		AmountsMWh: []uint64{10, 20},
		FacilityID: "SOLAR-001",
	})

	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Len(t, body["entries"], 2)

	status, body, _ = api.do(t, http.MethodPost, "/api/v1/mint/batch", &owner, BatchMintRequest{
		Recipients: []domain.Address{alice},
		AmountsMWh: []uint64{10, 20},
		FacilityID: "SOLAR-001",
	})
	assert.Equal(t, fiber.StatusBadRequest, status, body)
}

func TestRoutes_StoreFailureIsInternalError(t *testing.T) {
	// Arrange
	store := &mocks.MockLedgerStore{
		CommitFunc: func(ctx context.Context, cs *domain.Changeset) error {
			if cs.Meta.Paused {
				return errors.New("connection reset by peer")
			}
			return nil
		},
	}
	api := newTestAPI(t, store)

	// Act
	status, body, _ := api.do(t, http.MethodPost, "/api/v1/admin/pause", &owner, nil)

	// Assert
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
	assert.False(t, api.ledger.Paused(context.Background()))
}
