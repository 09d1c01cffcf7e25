package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mint-candles/internal/domain"
	"mint-candles/internal/registry"
	"mint-candles/internal/scheduler"
	"mint-candles/internal/storage"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Ingester triggers ingestion for a single mint.
type Ingester interface {
	IngestMint(ctx context.Context, address string) (int, error)
}

// CandleBuilder triggers candle generation and rebuild for a single mint.
type CandleBuilder interface {
	Generate(ctx context.Context, address, period string) ([]domain.Period, error)
	Rebuild(ctx context.Context, address, period string) ([]domain.Period, error)
}

// StatusReporter exposes the scheduler's last-run snapshot.
type StatusReporter interface {
	Status() []scheduler.JobStatus
}

// Handler serves the API endpoints.
type Handler struct {
	txStore     storage.TransactionStore
	candleStore storage.CandleStore
	ingester    Ingester
	builder     CandleBuilder
	scheduler   StatusReporter
	logger      zerolog.Logger
}

// HandlerOptions contains the handler's dependencies. Scheduler may be nil
// when the periodic sweeps are disabled.
type HandlerOptions struct {
	TxStore     storage.TransactionStore
	CandleStore storage.CandleStore
	Ingester    Ingester
	Builder     CandleBuilder
	Scheduler   StatusReporter
	Logger      zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		txStore:     opts.TxStore,
		candleStore: opts.CandleStore,
		ingester:    opts.Ingester,
		builder:     opts.Builder,
		scheduler:   opts.Scheduler,
		logger:      opts.Logger,
	}
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func okResponse(data any) response {
	return response{Success: true, Data: data}
}

func errorResponse(msg string) response {
	return response{Success: false, Error: msg}
}

type candleJSON struct {
	Timestamp  int64  `json:"timestamp"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
	TradeCount int64  `json:"trade_count"`
}

func candleToJSON(c *domain.Candle) candleJSON {
	return candleJSON{
		Timestamp:  c.BucketStart,
		Open:       c.Open.String(),
		High:       c.High.String(),
		Low:        c.Low.String(),
		Close:      c.Close.String(),
		Volume:     c.Volume.String(),
		TradeCount: c.TradeCount,
	}
}

type transactionJSON struct {
	Timestamp int64  `json:"timestamp"`
	MintSize  string `json:"mint_size"`
	MintFee   string `json:"mint_fee"`
	Price     string `json:"price"`
	Era       int64  `json:"era"`
	Epoch     int64  `json:"epoch"`
}

func transactionToJSON(tx *domain.Transaction) transactionJSON {
	return transactionJSON{
		Timestamp: tx.Timestamp,
		MintSize:  tx.MintSize.String(),
		MintFee:   tx.MintFee.String(),
		Price:     tx.Price.String(),
		Era:       tx.Era,
		Epoch:     tx.Epoch,
	}
}

// GetOHLC returns candles for a mint and period, newest first.
func (h *Handler) GetOHLC(c *gin.Context) {
	address, ok := h.mintAddress(c)
	if !ok {
		return
	}
	period, err := domain.ParsePeriod(c.DefaultQuery("period", string(domain.Period5m)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	from, to, limit, ok := h.rangeParams(c)
	if !ok {
		return
	}

	candles, err := h.candleStore.GetRange(c.Request.Context(), address, period, from, to, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]candleJSON, 0, len(candles))
	for _, candle := range candles {
		out = append(out, candleToJSON(candle))
	}
	c.JSON(http.StatusOK, okResponse(out))
}

// GetTransactions returns raw transactions for a mint, newest first.
func (h *Handler) GetTransactions(c *gin.Context) {
	address, ok := h.mintAddress(c)
	if !ok {
		return
	}
	from, to, limit, ok := h.rangeParams(c)
	if !ok {
		return
	}

	txs, err := h.txStore.GetRange(c.Request.Context(), address, from, to, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionToJSON(tx))
	}
	c.JSON(http.StatusOK, okResponse(out))
}

// GetLatestPrice returns the close of the newest candle for a mint.
func (h *Handler) GetLatestPrice(c *gin.Context) {
	address, ok := h.mintAddress(c)
	if !ok {
		return
	}
	period, err := domain.ParsePeriod(c.DefaultQuery("period", string(domain.Period5m)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	candle, err := h.candleStore.GetLatest(c.Request.Context(), address, period)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse(gin.H{
		"price":     candle.Close.String(),
		"timestamp": candle.BucketStart,
		"period":    string(candle.Period),
	}))
}

// Fetch triggers ingestion for one mint.
func (h *Handler) Fetch(c *gin.Context) {
	address, ok := h.mintAddress(c)
	if !ok {
		return
	}

	count, err := h.ingester.IngestMint(c.Request.Context(), address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, okResponse(gin.H{"new_transactions": count}))
}

// GenerateOHLC triggers incremental candle generation for one mint.
func (h *Handler) GenerateOHLC(c *gin.Context) {
	h.runBuilder(c, h.builder.Generate)
}

// RebuildOHLC deletes and replays candles for one mint.
func (h *Handler) RebuildOHLC(c *gin.Context) {
	h.runBuilder(c, h.builder.Rebuild)
}

func (h *Handler) runBuilder(c *gin.Context, run func(context.Context, string, string) ([]domain.Period, error)) {
	address, ok := h.mintAddress(c)
	if !ok {
		return
	}

	periods, err := run(c.Request.Context(), address, c.Query("period"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if periods == nil {
		periods = []domain.Period{}
	}
	c.JSON(http.StatusOK, okResponse(gin.H{"periods": periods}))
}

// GetSchedulerStatus returns the last run of each periodic sweep.
func (h *Handler) GetSchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusOK, okResponse(gin.H{"enabled": false}))
		return
	}
	c.JSON(http.StatusOK, okResponse(gin.H{
		"enabled": true,
		"jobs":    h.scheduler.Status(),
	}))
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) mintAddress(c *gin.Context) (string, bool) {
	address := c.Param("address")
	if err := registry.ValidateAddress(address); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return "", false
	}
	return address, true
}

func (h *Handler) rangeParams(c *gin.Context) (from, to int64, limit int, ok bool) {
	var err error
	if from, err = queryInt64(c, "from", 0); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid from parameter"))
		return 0, 0, 0, false
	}
	if to, err = queryInt64(c, "to", 0); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid to parameter"))
		return 0, 0, 0, false
	}
	limit64, err := queryInt64(c, "limit", defaultLimit)
	if err != nil || limit64 < 1 || limit64 > maxLimit {
		c.JSON(http.StatusBadRequest, errorResponse("invalid limit parameter"))
		return 0, 0, 0, false
	}
	return from, to, int(limit64), true
}

func queryInt64(c *gin.Context, name string, def int64) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrMintNotFound), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, domain.ErrUnknownPeriod), errors.Is(err, registry.ErrInvalidAddress), errors.Is(err, storage.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}
