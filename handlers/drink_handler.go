package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/arthurmvo/Coffee-Shop/middleware"
	"github.com/arthurmvo/Coffee-Shop/models"
	"github.com/arthurmvo/Coffee-Shop/services/drinks"
	"github.com/arthurmvo/Coffee-Shop/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DrinkService is the set of drink use cases the handlers call
type DrinkService interface {
	List(ctx context.Context) ([]*models.Drink, error)
	Create(ctx context.Context, in drinks.CreateInput) (*models.Drink, error)
	Update(ctx context.Context, id int64, in drinks.UpdateInput) (*models.Drink, error)
	Delete(ctx context.Context, id int64) error
}

// DrinkHandler handles the drinks endpoints
type DrinkHandler struct {
	service DrinkService
	logger  *zap.Logger
}

// NewDrinkHandler creates a new DrinkHandler
func NewDrinkHandler(service DrinkService, logger *zap.Logger) *DrinkHandler {
	return &DrinkHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /drinks with the short representation
func (h *DrinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	short := make([]models.ShortDrink, len(list))
	for i, d := range list {
		short[i] = d.Short()
	}
	h.logWriteErr(utils.WriteDrinks(w, short))
}

// HandleListDetail handles GET /drinks-detail with the long representation
func (h *DrinkHandler) HandleListDetail(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logWriteErr(utils.WriteDrinks(w, longDrinks(list...)))
}

// HandleCreate handles POST /drinks
func (h *DrinkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in drinks.CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	drink, err := h.service.Create(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("drink added to menu",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("sub", subject(r)),
		zap.Int64("drink_id", drink.ID))
	h.logWriteErr(utils.WriteDrinks(w, longDrinks(drink)))
}

// HandleUpdate handles PATCH /drinks/{id}
func (h *DrinkHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		h.logWriteErr(utils.WriteNotFound(w, ""))
		return
	}

	var in drinks.UpdateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	drink, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logWriteErr(utils.WriteDrinks(w, longDrinks(drink)))
}

// HandleDelete handles DELETE /drinks/{id}
func (h *DrinkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := drinkID(r)
	if !ok {
		h.logWriteErr(utils.WriteNotFound(w, ""))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("drink removed from menu",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("sub", subject(r)),
		zap.Int64("drink_id", id))
	h.logWriteErr(utils.WriteDeleted(w, id))
}

func (h *DrinkHandler) logWriteErr(err error) {
	if err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// drinkID parses the {id} URL parameter. Ids that cannot name a stored
// drink are reported as not found.
func drinkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func subject(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject()
	}
	return ""
}

func longDrinks(list ...*models.Drink) []models.LongDrink {
	long := make([]models.LongDrink, len(list))
	for i, d := range list {
		long[i] = d.Long()
	}
	return long
}
