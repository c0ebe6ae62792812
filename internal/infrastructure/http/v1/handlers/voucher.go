package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/domain"
	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/infrastructure/http/v1/dto"
)

// VoucherHandler handles HTTP requests for exit vouchers.
type VoucherHandler struct {
	*BaseHandler
	service *voucher.Service
}

// NewVoucherHandler creates a new exit voucher handler.
func NewVoucherHandler(base *BaseHandler, service *voucher.Service) *VoucherHandler {
	return &VoucherHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /vouchers.
func (h *VoucherHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := voucher.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "")

	if reason := c.Query("reason"); reason != "" {
		r := voucher.Reason(reason)
		filter.Reason = &r
	}
	if invoiceID := c.Query("invoiceId"); invoiceID != "" {
		parsed, err := id.Parse(invoiceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid invoiceId format"))
			return
		}
		filter.InvoiceID = &parsed
	}
	if from := c.Query("dateFrom"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid dateFrom format"))
			return
		}
		filter.DateFrom = &parsed
	}
	if to := c.Query("dateTo"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid dateTo format"))
			return
		}
		filter.DateTo = &parsed
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromVoucher(doc)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /vouchers/:id.
func (h *VoucherHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVoucher(doc))
}

// GetByNumber handles GET /vouchers/by-number/:number.
func (h *VoucherHandler) GetByNumber(c *gin.Context) {
	ctx := c.Request.Context()

	doc, err := h.service.GetByNumber(ctx, c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVoucher(doc))
}

// Create handles POST /vouchers.
// The transaction behind it issues stock and assigns the number, so the
// response carries both the assigned number and the materialized lines.
func (h *VoucherHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateVoucherRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromVoucher(doc))
}

// Update handles PUT /vouchers/:id.
func (h *VoucherHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateVoucherRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return
	}

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVoucher(doc))
}

// Delete handles DELETE /vouchers/:id.
// Stock issued by the voucher is returned to inventory in the same
// transaction.
func (h *VoucherHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Movements handles GET /vouchers/:id/movements - per-product stock
// snapshots the voucher currently holds in the ledger.
func (h *VoucherHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	snapshots, err := h.service.GetMovements(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.FromStockSnapshots(snapshots)})
}
