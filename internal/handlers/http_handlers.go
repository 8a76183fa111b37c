package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/internal/service"
)

// AccountHeader carries the caller's address. Authenticating it is left to
// whatever sits in front of this server.
const AccountHeader = "X-Account"

const callerKey = "caller"

// HTTPHandler exposes a RaffleService over JSON.
type HTTPHandler struct {
	service      *service.RaffleService
	decimals     int32
	claimTimeout uint64
}

// NewHTTPHandler creates a new HTTPHandler. Amounts are displayed with the
// given number of decimals; claimTimeout is used when a recovery request does
// not name one.
func NewHTTPHandler(service *service.RaffleService, decimals int32, claimTimeout uint64) *HTTPHandler {
	return &HTTPHandler{
		service:      service,
		decimals:     decimals,
		claimTimeout: claimTimeout,
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *HTTPHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/raffle", h.GetRaffle)
	router.GET("/accounts/:address", h.GetAccount)
	router.GET("/events", h.GetEvents)
	router.GET("/metrics", h.GetMetrics)

	commands := router.Group("/")
	commands.Use(h.CallerMiddleware())
	commands.POST("/roles", h.AssignRole)
	commands.POST("/tickets", h.PurchaseTickets)
	commands.POST("/end", h.EndRaffle)
	commands.POST("/claim", h.ClaimJackpot)
	commands.POST("/recover", h.HandleUnclaimedJackpot)
	commands.POST("/house-share", h.WithdrawHouseShare)
}

// RequestLogger logs every request once it has been served.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// CallerMiddleware resolves the X-Account header into the caller account.
func (h *HTTPHandler) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := raffle.ParseAccount(c.GetHeader(AccountHeader))
		if err != nil {
			abortWithError(c, errors.Wrapf(err, "header %s", AccountHeader))
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerOf(c *gin.Context) raffle.Account {
	return c.MustGet(callerKey).(raffle.Account)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, raffle.ErrUnauthorized), errors.Is(err, raffle.ErrNotWinner):
		return http.StatusForbidden
	case errors.Is(err, raffle.ErrInvalidAddress),
		errors.Is(err, raffle.ErrInvalidTicketCount),
		errors.Is(err, raffle.ErrExceedsMaxPerTx),
		errors.Is(err, raffle.ErrExceedsMaxTickets),
		errors.Is(err, raffle.ErrIncorrectPayment),
		errors.Is(err, raffle.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, raffle.ErrRaffleNotActive),
		errors.Is(err, raffle.ErrRaffleNotEnded),
		errors.Is(err, raffle.ErrNoTicketsSold),
		errors.Is(err, raffle.ErrAlreadyClaimed),
		errors.Is(err, raffle.ErrTimeoutNotReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	kind := raffle.KindOf(err)
	if kind == "" {
		kind = "Internal"
	}
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": kind, "message": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": message})
}

func (h *HTTPHandler) respond(c *gin.Context, event raffle.Event, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

type roleRequest struct {
	Target string      `json:"target"`
	Role   interface{} `json:"role"`
}

// AssignRole handles POST /roles. The role is a name or the numeric wire code.
func (h *HTTPHandler) AssignRole(c *gin.Context) {
	var request roleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err.Error())
		return
	}
	target, err := raffle.ParseAccount(request.Target)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var roleText string
	switch v := request.Role.(type) {
	case string:
		roleText = v
	case float64:
		roleText = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		badRequest(c, "role must be a name or a code")
		return
	}
	role, err := raffle.ParseRole(roleText)
	if err != nil {
		// unknown roles are refused the same way the raffle refuses non-buyer roles
		abortWithError(c, errors.Wrap(raffle.ErrUnauthorized, err.Error()))
		return
	}

	event, err := h.service.AssignRole(c.Request.Context(), callerOf(c), target, role)
	h.respond(c, event, err)
}

type purchaseRequest struct {
	Count   uint64 `json:"count"`
	Payment string `json:"payment" binding:"required"`
}

// PurchaseTickets handles POST /tickets. The payment is a base-10 string in
// the smallest unit.
func (h *HTTPHandler) PurchaseTickets(c *gin.Context) {
	var request purchaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err.Error())
		return
	}
	payment, err := strconv.ParseUint(strings.TrimSpace(request.Payment), 10, 64)
	if err != nil {
		abortWithError(c, errors.Wrapf(raffle.ErrIncorrectPayment, "payment %q", request.Payment))
		return
	}

	event, err := h.service.PurchaseTickets(c.Request.Context(), callerOf(c), request.Count, payment)
	h.respond(c, event, err)
}

// EndRaffle handles POST /end.
func (h *HTTPHandler) EndRaffle(c *gin.Context) {
	event, err := h.service.EndRaffle(c.Request.Context(), callerOf(c))
	h.respond(c, event, err)
}

// ClaimJackpot handles POST /claim.
func (h *HTTPHandler) ClaimJackpot(c *gin.Context) {
	event, err := h.service.ClaimJackpot(c.Request.Context(), callerOf(c))
	h.respond(c, event, err)
}

type recoverRequest struct {
	TimeoutPeriod *uint64 `json:"timeoutPeriod"`
}

// HandleUnclaimedJackpot handles POST /recover. An empty body uses the
// configured claim timeout.
func (h *HTTPHandler) HandleUnclaimedJackpot(c *gin.Context) {
	var request recoverRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	timeout := h.claimTimeout
	if request.TimeoutPeriod != nil {
		timeout = *request.TimeoutPeriod
	}

	event, err := h.service.HandleUnclaimedJackpot(c.Request.Context(), callerOf(c), timeout)
	h.respond(c, event, err)
}

// WithdrawHouseShare handles POST /house-share.
func (h *HTTPHandler) WithdrawHouseShare(c *gin.Context) {
	event, err := h.service.WithdrawHouseShare(c.Request.Context(), callerOf(c))
	h.respond(c, event, err)
}

func (h *HTTPHandler) display(amount uint64) string {
	return decimal.NewFromUint64(amount).Shift(-h.decimals).String()
}

type raffleResponse struct {
	raffle.Info
	TicketPriceDisplay   string `json:"ticketPriceDisplay"`
	TotalEscrowDisplay   string `json:"totalEscrowDisplay"`
	JackpotAmountDisplay string `json:"jackpotAmountDisplay"`
}

// GetRaffle handles GET /raffle.
func (h *HTTPHandler) GetRaffle(c *gin.Context) {
	info := h.service.Info()
	c.JSON(http.StatusOK, raffleResponse{
		Info:                 info,
		TicketPriceDisplay:   h.display(info.Config.TicketPrice),
		TotalEscrowDisplay:   h.display(info.TotalEscrow),
		JackpotAmountDisplay: h.display(info.JackpotAmount),
	})
}

type accountResponse struct {
	service.AccountView
	RoleCode       int    `json:"roleCode"`
	BalanceDisplay string `json:"balanceDisplay"`
}

// GetAccount handles GET /accounts/:address.
func (h *HTTPHandler) GetAccount(c *gin.Context) {
	account, err := raffle.ParseAccount(c.Param("address"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	view, err := h.service.Account(c.Request.Context(), account)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{
		AccountView:    view,
		RoleCode:       view.Role.Code(),
		BalanceDisplay: view.Balance.Shift(-h.decimals).String(),
	})
}

// GetEvents handles GET /events?after=&limit=.
func (h *HTTPHandler) GetEvents(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		badRequest(c, "after must be a sequence number")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative number")
		return
	}
	events, err := h.service.Events(c.Request.Context(), after, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if events == nil {
		events = []raffle.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetMetrics handles GET /metrics.
func (h *HTTPHandler) GetMetrics(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	h.service.Metrics().WriteJSON(c.Writer)
}
