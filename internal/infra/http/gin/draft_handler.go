package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	draftsapp "motorent/internal/app/handlers/drafts"
	"motorent/internal/app/middleware"
	"motorent/internal/app/policies"
	"motorent/internal/app/queries"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/domain/shared/daterange"
)

type DraftHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type startDraftRequest struct {
	Kind string `json:"kind" binding:"required"`
}

type tapRequest struct {
	Date string `json:"date" binding:"required"`
}

type windowRequest struct {
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type allDayRequest struct {
	AllDay *bool `json:"all_day" binding:"required"`
}

func (h DraftHandler) Start(c *gin.Context) {
	var req startDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := draftsapp.StartDraftCommand{OwnerID: callerID(c), Kind: req.Kind}
	result, err := commands.Dispatch[draftsapp.StartDraftCommand, *dto.Draft](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/api/v1/drafts/%s", result.ID))
	c.JSON(http.StatusCreated, result)
}

func (h DraftHandler) Get(c *gin.Context) {
	query := draftsapp.GetDraftQuery{DraftID: draftID(c)}
	result, err := queries.Ask[draftsapp.GetDraftQuery, *dto.Draft](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h DraftHandler) UpdateDetails(c *gin.Context) {
	var details domainlistings.Details
	if err := c.ShouldBindJSON(&details); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	h.dispatchDraft(c, draftsapp.UpdateDetailsCommand{DraftID: draftID(c), Details: details})
}

// Tap answers 200 for a past date with the draft unchanged.
func (h DraftHandler) Tap(c *gin.Context) {
	var req tapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	h.dispatchDraft(c, draftsapp.TapDateCommand{DraftID: draftID(c), Date: req.Date})
}

func (h DraftHandler) AddWindow(c *gin.Context) {
	h.dispatchDraft(c, draftsapp.AddWindowCommand{DraftID: draftID(c)})
}

func (h DraftHandler) UpdateWindow(c *gin.Context) {
	index, ok := h.windowIndex(c)
	if !ok {
		return
	}
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	h.dispatchDraft(c, draftsapp.UpdateWindowCommand{DraftID: draftID(c), Index: index, StartTime: req.StartTime, EndTime: req.EndTime})
}

func (h DraftHandler) RemoveWindow(c *gin.Context) {
	index, ok := h.windowIndex(c)
	if !ok {
		return
	}
	h.dispatchDraft(c, draftsapp.RemoveWindowCommand{DraftID: draftID(c), Index: index})
}

func (h DraftHandler) SetAllDay(c *gin.Context) {
	var req allDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	h.dispatchDraft(c, draftsapp.SetAllDayCommand{DraftID: draftID(c), AllDay: *req.AllDay})
}

func (h DraftHandler) ResetDates(c *gin.Context) {
	h.dispatchDraft(c, draftsapp.ResetDatesCommand{DraftID: draftID(c)})
}

func (h DraftHandler) Submit(c *gin.Context) {
	cmd := draftsapp.SubmitDraftCommand{
		DraftID:   draftID(c),
		ClientKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	result, err := commands.Dispatch[draftsapp.SubmitDraftCommand, *draftsapp.SubmitDraftResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h DraftHandler) Abandon(c *gin.Context) {
	h.dispatchDraft(c, draftsapp.AbandonDraftCommand{DraftID: draftID(c)})
}

func (h DraftHandler) dispatchDraft(c *gin.Context, cmd commands.Command) {
	res, err := h.Commands.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	result, ok := res.(*dto.Draft)
	if !ok {
		h.respondWithError(c, http.StatusInternalServerError, fmt.Errorf("%w: %T", commands.ErrResultType, res))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h DraftHandler) windowIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, fmt.Errorf("invalid window index %q", c.Param("index")))
		return 0, false
	}
	return index, true
}

func (h DraftHandler) handleError(c *gin.Context, err error) {
	var verrs domainlistings.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verrs})
	case errors.Is(err, middleware.ErrUnauthenticated):
		h.respondWithError(c, http.StatusUnauthorized, err)
	case errors.Is(err, domainlistings.ErrDraftNotFound), errors.Is(err, draftsapp.ErrForbidden):
		h.respondWithError(c, http.StatusNotFound, domainlistings.ErrDraftNotFound)
	case errors.Is(err, daterange.ErrInvalidDate),
		errors.Is(err, availability.ErrInvalidClock),
		errors.Is(err, availability.ErrWindowIndex),
		errors.Is(err, availability.ErrBeyondHorizon),
		errors.Is(err, domainlistings.ErrUnknownVehicleKind):
		h.respondWithError(c, http.StatusBadRequest, err)
	case errors.Is(err, availability.ErrLastWindow),
		errors.Is(err, availability.ErrAllDayActive),
		errors.Is(err, domainlistings.ErrDraftClosed),
		errors.Is(err, domainlistings.ErrConcurrentUpdate),
		errors.Is(err, domainlistings.ErrDraftExists):
		h.respondWithError(c, http.StatusConflict, err)
	case errors.Is(err, policies.ErrSubmissionRejected):
		h.respondWithError(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, policies.ErrBackendUnavailable):
		c.Header("Retry-After", "5")
		h.respondWithError(c, http.StatusServiceUnavailable, err)
	default:
		if h.Logger != nil {
			h.Logger.ErrorContext(c.Request.Context(), "draft request failed", "path", c.FullPath(), "error", err)
		}
		h.respondWithError(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (h DraftHandler) respondWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func draftID(c *gin.Context) domainlistings.DraftID {
	return domainlistings.DraftID(c.Param("id"))
}

var _ DraftHTTP = DraftHandler{}
