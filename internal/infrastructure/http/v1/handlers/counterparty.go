package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gatepass/internal/domain/catalogs/counterparty"
	"gatepass/internal/infrastructure/http/v1/dto"
)

// CounterpartyHandler handles HTTP requests for counterparties.
type CounterpartyHandler struct {
	*CatalogHandler[*counterparty.Counterparty, dto.CreateCounterpartyRequest, dto.UpdateCounterpartyRequest]
	service *counterparty.Service
}

// NewCounterpartyHandler creates a new counterparty handler.
func NewCounterpartyHandler(base *BaseHandler, service *counterparty.Service) *CounterpartyHandler {
	cfg := CatalogHandlerConfig[
		*counterparty.Counterparty,
		dto.CreateCounterpartyRequest,
		dto.UpdateCounterpartyRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "counterparty",
		MapCreateDTO: func(req dto.CreateCounterpartyRequest) (*counterparty.Counterparty, error) {
			return req.ToEntity(), nil
		},
		MapUpdateDTO: func(req dto.UpdateCounterpartyRequest, existing *counterparty.Counterparty) (*counterparty.Counterparty, error) {
			req.ApplyTo(existing)
			return existing, nil
		},
		MapToDTO: func(cp *counterparty.Counterparty) any {
			return dto.FromCounterparty(cp)
		},
	}

	return &CounterpartyHandler{
		CatalogHandler: NewCatalogHandler(base, cfg),
		service:        service,
	}
}

// ByTaxID handles GET /counterparties/by-tax-id/:taxId - lookup by fiscal number.
func (h *CounterpartyHandler) ByTaxID(c *gin.Context) {
	ctx := c.Request.Context()

	cp, err := h.service.FindByTaxID(ctx, c.Param("taxId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromCounterparty(cp))
}
