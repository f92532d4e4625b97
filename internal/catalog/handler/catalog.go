package handler

import (
	"math"
	"net/http"

	catalogerrors "carrental/internal/catalog/errors"
	"carrental/internal/catalog/service"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// allSentinel is what the browse UI sends for "no filter".
const allSentinel = "All"

type CatalogHandler struct {
	service service.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(service service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log,
	}
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	spec, err := parseFilterSpec(r)
	if err != nil {
		h.writeError(w, err, "Search")
		return
	}

	cars := h.service.Search(spec)
	if err := httputil.WriteList(w, cars, len(cars)); err != nil {
		h.log.Error("failed to write list response", "handler", "Search", "operation", "WriteList", "error", err)
	}
}

func parseFilterSpec(r *http.Request) (model.FilterSpec, error) {
	spec := model.FilterSpec{
		Brand: httputil.QueryOptional(r, "brand", allSentinel),
		Type:  httputil.QueryOptional(r, "type", allSentinel),
	}

	minPrice, err := httputil.QueryFloat(r, "min_price")
	if err != nil {
		return spec, err
	}
	maxPrice, err := httputil.QueryFloat(r, "max_price")
	if err != nil {
		return spec, err
	}
	if minPrice != nil || maxPrice != nil {
		pr := model.PriceRange{Min: 0, Max: math.MaxFloat64}
		if minPrice != nil {
			pr.Min = *minPrice
		}
		if maxPrice != nil {
			pr.Max = *maxPrice
		}
		if pr.Min > pr.Max {
			return spec, apperrors.InvalidInput("min_price cannot be greater than max_price")
		}
		spec.PriceRange = &pr
	}

	if sortBy := httputil.QueryOptional(r, "sort_by"); sortBy != nil {
		order := model.SortOrder(*sortBy)
		if !order.Valid() {
			return spec, apperrors.InvalidInput("sort_by must be one of: price_asc, price_desc, newest")
		}
		spec.SortBy = &order
	}

	return spec, nil
}

func (h *CatalogHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	car, ok := h.service.GetCar(id)
	if !ok {
		h.writeError(w, apperrors.NotFoundWithID("Car", id).WithCause(catalogerrors.ErrCarNotFound), "GetByID")
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) Quote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pickup, err := httputil.QueryTime(r, "pickup_date")
	if err != nil {
		h.writeError(w, err, "Quote")
		return
	}
	ret, err := httputil.QueryTime(r, "return_date")
	if err != nil {
		h.writeError(w, err, "Quote")
		return
	}

	quote, err := h.service.Quote(ps.ByName("id"), pickup, ret)
	if err != nil {
		h.writeError(w, err, "Quote")
		return
	}

	if err := httputil.WriteSuccess(w, quote); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) Facets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.service.Facets()); err != nil {
		h.log.Error("failed to write success response", "handler", "Facets", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CatalogHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/cars", h.Search)
	router.GET("/api/v1/cars/facets", h.Facets)
	router.GET("/api/v1/cars/id/:id", h.GetByID)
	router.GET("/api/v1/cars/id/:id/quote", h.Quote)
}
