package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type TokenHandler struct {
	service ports.LedgerService
	log     *zap.Logger
}

func NewTokenHandler(service ports.LedgerService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		log:     log,
	}
}

type MintRequest struct {
	To          domain.Address `json:"to"`
	AmountMWh   uint64         `json:"amount_mwh"`
	FacilityID  string         `json:"facility_id"`
	Metadata    string         `json:"metadata"`
	GeneratedAt *time.Time     `json:"generated_at"`
}

type BatchMintRequest struct {
	Recipients  []domain.Address `json:"recipients"`
	AmountsMWh  []uint64         `json:"amounts_mwh"`
	FacilityID  string           `json:"facility_id"`
	Metadata    string           `json:"metadata"`
	GeneratedAt *time.Time       `json:"generated_at"`
}

type TransferRequest struct {
	From *domain.Address `json:"from"`
	To   domain.Address  `json:"to"`
	amountInput
}

type TransferFromRequest struct {
	From domain.Address `json:"from"`
	To   domain.Address `json:"to"`
	amountInput
}

type ApproveRequest struct {
	Spender domain.Address `json:"spender"`
	amountInput
}

type RetireRequest struct {
	Account *domain.Address `json:"account"`
	Reason  string          `json:"reason"`
	amountInput
}

type BurnRequest struct {
	Account *domain.Address `json:"account"`
	amountInput
}

func (h *TokenHandler) Info(c *fiber.Ctx) error {
	return c.JSON(h.service.TokenInfo(c.Context()))
}

func (h *TokenHandler) Balance(c *fiber.Ctx) error {
	account, err := addressParam(c, "address")
	if err != nil {
		return err
	}

	active := h.service.BalanceOf(c.Context(), account)
	retired := h.service.RetiredBalanceOf(c.Context(), account)
	return c.JSON(BalanceResponse{
		Account:       account,
		Active:        active,
		Retired:       retired,
		ActiveTokens:  active.Tokens(),
		RetiredTokens: retired.Tokens(),
		EntryCount:    len(h.service.AccountEntryIndices(c.Context(), account)),
	})
}

func (h *TokenHandler) Allowance(c *fiber.Ctx) error {
	owner, err := addressParam(c, "address")
	if err != nil {
		return err
	}
	spender, err := addressParam(c, "spender")
	if err != nil {
		return err
	}
	return c.JSON(domain.Allowance{
		Owner:   owner,
		Spender: spender,
		Amount:  h.service.Allowance(c.Context(), owner, spender),
	})
}

func (h *TokenHandler) Mint(c *fiber.Ctx) error {
	var req MintRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	entry, err := h.service.Mint(c.Context(), middleware.Caller(c), domain.MintRequest{
		To:          req.To,
		AmountMWh:   req.AmountMWh,
		FacilityID:  req.FacilityID,
		Metadata:    req.Metadata,
		GeneratedAt: req.GeneratedAt,
	})
	if err != nil {
		h.log.Warn("Mint rejected",
			zap.String("facility_id", req.FacilityID),
			zap.String("to", req.To.Hex()),
			zap.Error(err),
		)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *TokenHandler) BatchMint(c *fiber.Ctx) error {
	var req BatchMintRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	entries, err := h.service.BatchMint(c.Context(), middleware.Caller(c), domain.BatchMintRequest{
		Recipients:  req.Recipients,
		AmountsMWh:  req.AmountsMWh,
		FacilityID:  req.FacilityID,
		Metadata:    req.Metadata,
		GeneratedAt: req.GeneratedAt,
	})
	if err != nil {
		h.log.Warn("Batch mint rejected",
			zap.String("facility_id", req.FacilityID),
			zap.Int("recipients", len(req.Recipients)),
			zap.Error(err),
		)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entries": entries})
}

func (h *TokenHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	amount, err := req.resolve()
	if err != nil {
		return err
	}

	caller := middleware.Caller(c)
	entry, err := h.service.Transfer(c.Context(), caller, accountOr(req.From, caller), req.To, amount)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

func (h *TokenHandler) TransferFrom(c *fiber.Ctx) error {
	var req TransferFromRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	amount, err := req.resolve()
	if err != nil {
		return err
	}

	entry, err := h.service.TransferFrom(c.Context(), middleware.Caller(c), req.From, req.To, amount)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

func (h *TokenHandler) Approve(c *fiber.Ctx) error {
	var req ApproveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	amount, err := req.resolve()
	if err != nil {
		return err
	}

	caller := middleware.Caller(c)
	if err := h.service.Approve(c.Context(), caller, req.Spender, amount); err != nil {
		return err
	}
	return c.JSON(domain.Allowance{Owner: caller, Spender: req.Spender, Amount: amount})
}

func (h *TokenHandler) Retire(c *fiber.Ctx) error {
	var req RetireRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	amount, err := req.resolve()
	if err != nil {
		return err
	}

	caller := middleware.Caller(c)
	entry, err := h.service.Retire(c.Context(), caller, accountOr(req.Account, caller), amount, req.Reason)
	if err != nil {
		return err
	}

	h.log.Info("Certificates retired",
		zap.String("account", entry.From.Hex()),
		zap.String("amount", entry.Amount.String()),
		zap.Uint64("index", entry.Index),
	)
	return c.JSON(entry)
}

func (h *TokenHandler) Burn(c *fiber.Ctx) error {
	var req BurnRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	amount, err := req.resolve()
	if err != nil {
		return err
	}

	caller := middleware.Caller(c)
	entry, err := h.service.Burn(c.Context(), caller, accountOr(req.Account, caller), amount)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}
