package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/kiwari-pos/orderdesk/internal/sales"
	"github.com/rs/zerolog"
)

const (
	maxTopItemsLimit = 50
	maxTrendPoints   = 90
)

var errNoSnapshot = errors.New("sales data not yet available")

// SnapshotReader exposes the last good order snapshot.
// Satisfied by *refresh.Controller; narrow interface for testability.
type SnapshotReader interface {
	Current() (refresh.Snapshot, refresh.State, bool)
}

// ReportsHandler serves dashboard aggregates computed from the latest
// snapshot. Reports never hit the store directly.
type ReportsHandler struct {
	snaps    SnapshotReader
	reporter *sales.Reporter
	log      zerolog.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(snaps SnapshotReader, reporter *sales.Reporter, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{snaps: snaps, reporter: reporter, log: log}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at /reports.
//
// Every endpoint takes ?period= (today, yesterday, this-week, last-week,
// this-month, last-month, last-7-days, last-30-days) or an explicit
// start_date and end_date, both inclusive days.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.Sales)
	r.Get("/comparison", h.Comparison)
	r.Get("/top-items", h.TopItems)
	r.Get("/trend", h.Trend)
	r.Get("/order-types", h.OrderTypes)
	r.Get("/hourly-sales", h.HourlySales)
}

// --- Response types ---

type rangeResponse struct {
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type salesSummaryResponse struct {
	Range       rangeResponse `json:"range"`
	OrderCount  int           `json:"order_count"`
	TotalSales  string        `json:"total_sales"`
	BilledTotal string        `json:"billed_total"`
	Cost        string        `json:"cost"`
	GrossProfit string        `json:"gross_profit"`
}

type comparisonResponse struct {
	Current      salesSummaryResponse `json:"current"`
	Comparison   salesSummaryResponse `json:"comparison"`
	SalesChange  string               `json:"sales_change"`
	OrdersChange string               `json:"orders_change"`
}

type topItemResponse struct {
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
	TotalRevenue string `json:"total_revenue"`
}

type trendPointResponse struct {
	Date       string `json:"date"`
	Label      string `json:"label"`
	OrderCount int    `json:"order_count"`
	TotalSales string `json:"total_sales"`
}

type orderTypeSalesResponse struct {
	OrderType  string `json:"order_type"`
	OrderCount int    `json:"order_count"`
	TotalSales string `json:"total_sales"`
}

type hourlySalesResponse struct {
	Hour       int    `json:"hour"`
	OrderCount int    `json:"order_count"`
	TotalSales string `json:"total_sales"`
}

// --- Handlers ---

// Sales returns realized sales totals for a range.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	snap, rng, _, ok := h.prepare(w, r)
	if !ok {
		return
	}

	writeJSON(w, r, http.StatusOK, toSummaryResponse(sales.SalesInRange(snap.Orders, rng, snap.Catalog)))
}

// Comparison returns a range next to its comparison window with percent changes.
func (h *ReportsHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	snap, rng, period, ok := h.prepare(w, r)
	if !ok {
		return
	}

	prev, err := h.reporter.ComparisonRange(period, rng)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cmp := sales.Compare(snap.Orders, rng, prev, snap.Catalog)
	writeJSON(w, r, http.StatusOK, comparisonResponse{
		Current:      toSummaryResponse(cmp.Current),
		Comparison:   toSummaryResponse(cmp.Comparison),
		SalesChange:  cmp.SalesChange.StringFixed(1),
		OrdersChange: cmp.OrdersChange.StringFixed(1),
	})
}

// TopItems returns the best selling items by quantity.
func (h *ReportsHandler) TopItems(w http.ResponseWriter, r *http.Request) {
	snap, rng, _, ok := h.prepare(w, r)
	if !ok {
		return
	}

	limit := intParam(r, "limit", sales.DefaultTopItemsLimit, maxTopItemsLimit)
	rows := sales.TopItems(snap.Orders, rng, snap.Catalog, limit)

	resp := make([]topItemResponse, len(rows))
	for i, row := range rows {
		resp[i] = topItemResponse{
			Name:         row.Name,
			QuantitySold: row.Quantity,
			TotalRevenue: money(row.Revenue),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Trend returns daily sales for the most recent days with sales.
func (h *ReportsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	snap, rng, _, ok := h.prepare(w, r)
	if !ok {
		return
	}

	points := intParam(r, "points", sales.DefaultTrendPoints, maxTrendPoints)
	rows := sales.TrendSeries(snap.Orders, rng, snap.Catalog, points)

	resp := make([]trendPointResponse, len(rows))
	for i, row := range rows {
		resp[i] = trendPointResponse{
			Date:       row.Date,
			Label:      row.Label,
			OrderCount: row.Count,
			TotalSales: money(row.Total),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// OrderTypes returns realized sales split by dine-in and take-out.
func (h *ReportsHandler) OrderTypes(w http.ResponseWriter, r *http.Request) {
	snap, rng, _, ok := h.prepare(w, r)
	if !ok {
		return
	}

	rows := sales.ByOrderType(snap.Orders, rng, snap.Catalog)
	resp := make([]orderTypeSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = orderTypeSalesResponse{
			OrderType:  string(row.OrderType),
			OrderCount: row.Count,
			TotalSales: money(row.Total),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HourlySales returns sales per hour for peak hour analysis.
func (h *ReportsHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	snap, rng, _, ok := h.prepare(w, r)
	if !ok {
		return
	}

	rows := sales.HourlySalesInRange(snap.Orders, rng, snap.Catalog)
	resp := make([]hourlySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = hourlySalesResponse{
			Hour:       row.Hour,
			OrderCount: row.Count,
			TotalSales: money(row.Total),
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// --- Helpers ---

// prepare loads the current snapshot and resolves the requested range,
// writing the error response itself when either fails.
func (h *ReportsHandler) prepare(w http.ResponseWriter, r *http.Request) (refresh.Snapshot, sales.DateRange, sales.Period, bool) {
	period, rng, err := h.resolveRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return refresh.Snapshot{}, sales.DateRange{}, "", false
	}

	snap, state, ok := h.snaps.Current()
	if !ok {
		writeError(w, r, http.StatusServiceUnavailable, errNoSnapshot.Error())
		return refresh.Snapshot{}, sales.DateRange{}, "", false
	}
	w.Header().Set("X-Snapshot-Generation", strconv.FormatUint(snap.Generation, 10))
	w.Header().Set("X-Snapshot-Stale", strconv.FormatBool(state.Stale()))
	return snap, rng, period, true
}

// resolveRange reads an explicit start_date/end_date pair, falling back to
// the named period. The end date is inclusive.
func (h *ReportsHandler) resolveRange(r *http.Request) (sales.Period, sales.DateRange, error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start_date"), q.Get("end_date")

	if startStr == "" && endStr == "" {
		period, err := sales.ParsePeriod(q.Get("period"))
		if err != nil {
			return "", sales.DateRange{}, err
		}
		rng, err := h.reporter.Resolve(period)
		if err != nil {
			return "", sales.DateRange{}, err
		}
		return period, rng, nil
	}

	if startStr == "" || endStr == "" {
		return "", sales.DateRange{}, sales.ErrCustomPeriod
	}

	cal := h.reporter.Calendar()
	loc := cal.Location
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dateLayout, startStr, loc)
	if err != nil {
		return "", sales.DateRange{}, fmt.Errorf("invalid start_date format: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, loc)
	if err != nil {
		return "", sales.DateRange{}, fmt.Errorf("invalid end_date format: %w", err)
	}

	rng, err := sales.CustomRange(start, end, cal)
	if err != nil {
		return "", sales.DateRange{}, fmt.Errorf("start_date must not be after end_date: %w", err)
	}
	return sales.PeriodCustom, rng, nil
}

func intParam(r *http.Request, key string, fallback, max int) int {
	v := fallback
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			v = n
		}
	}
	if v > max {
		v = max
	}
	return v
}

func toRangeResponse(rng sales.DateRange) rangeResponse {
	return rangeResponse{
		Label:     rng.Label,
		StartDate: rng.Start.Format(dateLayout),
		EndDate:   rng.End.AddDate(0, 0, -1).Format(dateLayout),
	}
}

func toSummaryResponse(s sales.Summary) salesSummaryResponse {
	return salesSummaryResponse{
		Range:       toRangeResponse(s.Range),
		OrderCount:  s.Count,
		TotalSales:  money(s.Total),
		BilledTotal: money(s.BilledTotal),
		Cost:        money(s.Cost),
		GrossProfit: money(s.GrossProfit),
	}
}
