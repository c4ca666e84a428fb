package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

// EntryHandler serves the transaction log and certificate views.
type EntryHandler struct {
	service ports.LedgerService
	log     *zap.Logger
}

func NewEntryHandler(service ports.LedgerService, log *zap.Logger) *EntryHandler {
	return &EntryHandler{
		service: service,
		log:     log,
	}
}

func (h *EntryHandler) List(c *fiber.Ctx) error {
	offset, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	items := h.service.ListEntries(c.Context(), offset, limit)
	if items == nil {
		items = []domain.Entry{}
	}
	return c.JSON(PageResponse{
		Items:  items,
		Total:  h.service.EntryCount(c.Context()),
		Offset: offset,
		Limit:  limit,
	})
}

func (h *EntryHandler) Get(c *fiber.Ctx) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	entry, err := h.service.GetEntry(c.Context(), idx)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// AccountEntries pages through the entries an account took part in, in log
// order.
func (h *EntryHandler) AccountEntries(c *fiber.Ctx) error {
	account, err := addressParam(c, "address")
	if err != nil {
		return err
	}
	offset, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	indices := h.service.AccountEntryIndices(c.Context(), account)
	total := uint64(len(indices))
	items := []domain.Entry{}
	for i := offset; i < total && uint64(len(items)) < limit; i++ {
		entry, err := h.service.GetEntry(c.Context(), indices[i])
		if err != nil {
			return err
		}
		items = append(items, *entry)
	}

	return c.JSON(PageResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

func (h *EntryHandler) Certificate(c *fiber.Ctx) error {
	idx, err := indexParam(c)
	if err != nil {
		return err
	}
	cert, err := h.service.Certificate(c.Context(), idx)
	if err != nil {
		return err
	}
	return c.JSON(cert)
}
