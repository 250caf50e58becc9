package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"journal-billing/internal/auth"
	"journal-billing/internal/model"
	"journal-billing/internal/service"
)

type JournalController struct {
	journalService service.JournalService
	logger         *zap.Logger
}

func NewJournalController(journalService service.JournalService, logger *zap.Logger) *JournalController {
	return &JournalController{
		journalService: journalService,
		logger:         logger,
	}
}

func (jc *JournalController) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/trades", jc.CreateTrade)
	e.GET("/api/trades", jc.ListTrades)
	e.POST("/api/watchlist", jc.AddWatchItem)
	e.GET("/api/watchlist", jc.ListWatchItems)
	e.GET("/api/usage/:kind", jc.GetUsage)
}

type CreateTradeRequest struct {
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  *float64   `json:"exitPrice"`
	Notes      string     `json:"notes"`
	TradedAt   *time.Time `json:"tradedAt"`
}

func (jc *JournalController) CreateTrade(c echo.Context) error {
	var req CreateTradeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	trade, err := jc.journalService.CreateTrade(c.Request().Context(), auth.SessionFrom(c), service.CreateTradeRequest{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		Notes:      req.Notes,
		TradedAt:   req.TradedAt,
	})
	if err != nil {
		return errorResponse(c, jc.logger, err)
	}

	return c.JSON(http.StatusCreated, service.NewTradeView(*trade))
}

func (jc *JournalController) ListTrades(c echo.Context) error {
	trades, err := jc.journalService.ListTrades(c.Request().Context(), auth.SessionFrom(c))
	if err != nil {
		return errorResponse(c, jc.logger, err)
	}

	views := make([]service.TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, service.NewTradeView(t))
	}
	return c.JSON(http.StatusOK, views)
}

type AddWatchItemRequest struct {
	Symbol string `json:"symbol"`
	Notes  string `json:"notes"`
}

func (jc *JournalController) AddWatchItem(c echo.Context) error {
	var req AddWatchItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	item, err := jc.journalService.AddWatchItem(c.Request().Context(), auth.SessionFrom(c), service.CreateWatchItemRequest{
		Symbol: req.Symbol,
		Notes:  req.Notes,
	})
	if err != nil {
		return errorResponse(c, jc.logger, err)
	}

	return c.JSON(http.StatusCreated, item)
}

func (jc *JournalController) ListWatchItems(c echo.Context) error {
	items, err := jc.journalService.ListWatchItems(c.Request().Context(), auth.SessionFrom(c))
	if err != nil {
		return errorResponse(c, jc.logger, err)
	}
	if items == nil {
		items = []model.WatchItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (jc *JournalController) GetUsage(c echo.Context) error {
	decision, err := jc.journalService.Usage(c.Request().Context(), auth.SessionFrom(c), model.ResourceKind(c.Param("kind")))
	if err != nil {
		return errorResponse(c, jc.logger, err)
	}
	return c.JSON(http.StatusOK, decision)
}
