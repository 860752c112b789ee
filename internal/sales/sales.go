// Package sales computes time-windowed aggregates over an order snapshot.
// Every function is read-only: the orders and catalog passed in are never
// modified, so repeated calls on one snapshot give identical results.
package sales

import (
	"sort"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopItemsLimit  = 5
	DefaultTrendPoints    = 7
	UnknownItemName       = "Unknown Item"
	percentChangeDecimals = 1
	hundred               = 100
)

// Summary is the realized-sales aggregate of one range.
//
// Total prices every line from the catalog at report time; ids no longer in
// the catalog contribute zero. BilledTotal sums the totals frozen on each
// order at creation, which is what customers actually paid.
type Summary struct {
	Range       DateRange       `json:"range"`
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
	BilledTotal decimal.Decimal `json:"billed_total"`
	Cost        decimal.Decimal `json:"cost"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Orders      []model.Order   `json:"orders,omitempty"`
}

// Comparison pairs a range with its comparison window.
type Comparison struct {
	Current      Summary         `json:"current"`
	Comparison   Summary         `json:"comparison"`
	SalesChange  decimal.Decimal `json:"sales_change"`
	OrdersChange decimal.Decimal `json:"orders_change"`
}

// ItemSales is one row of the top items ranking.
type ItemSales struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// TrendPoint is one calendar day of realized sales.
type TrendPoint struct {
	Date  string          `json:"date"`
	Label string          `json:"label"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// OrderTypeSales splits realized sales by dine-in and take-out.
type OrderTypeSales struct {
	OrderType enum.OrderType  `json:"order_type"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
}

// HourlySales is realized sales for one hour of the day, 0 to 23.
type HourlySales struct {
	Hour  int             `json:"hour"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Realized returns the orders created in r whose status is a realized sale,
// sorted by creation time then id.
func Realized(orders []model.Order, r DateRange) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status.IsRealizedSale() && r.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// OrderValue prices an order from the catalog.
func OrderValue(o model.Order, cat catalog.Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(cat.Price(li.ItemID).Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return total
}

func orderCost(o model.Order, cat catalog.Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		it, ok := cat.Lookup(li.ItemID)
		if !ok || it.Cost == nil {
			continue
		}
		total = total.Add(it.Cost.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return total
}

// SalesInRange aggregates realized sales created in r.
func SalesInRange(orders []model.Order, r DateRange, cat catalog.Catalog) Summary {
	realized := Realized(orders, r)
	s := Summary{
		Range:       r,
		Count:       len(realized),
		Total:       decimal.Zero,
		BilledTotal: decimal.Zero,
		Cost:        decimal.Zero,
		Orders:      make([]model.Order, len(realized)),
	}
	for i, o := range realized {
		s.Total = s.Total.Add(OrderValue(o, cat))
		s.BilledTotal = s.BilledTotal.Add(o.Total)
		s.Cost = s.Cost.Add(orderCost(o, cat))
		s.Orders[i] = o.Clone()
	}
	s.GrossProfit = s.Total.Sub(s.Cost)
	return s
}

// Compare builds a Comparison of two ranges.
func Compare(orders []model.Order, current, previous DateRange, cat catalog.Catalog) Comparison {
	cur := SalesInRange(orders, current, cat)
	prev := SalesInRange(orders, previous, cat)
	return Comparison{
		Current:      cur,
		Comparison:   prev,
		SalesChange:  PercentChange(cur.Total, prev.Total),
		OrdersChange: PercentChange(decimal.NewFromInt(int64(cur.Count)), decimal.NewFromInt(int64(prev.Count))),
	}
}

// PercentChange is (current-previous)/previous*100 rounded to one decimal.
// With nothing to compare against it is 100 when current is positive,
// otherwise 0.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		if current.IsPositive() {
			return decimal.NewFromInt(hundred)
		}
		return decimal.Zero
	}
	return current.Sub(previous).
		Div(previous).
		Mul(decimal.NewFromInt(hundred)).
		Round(percentChangeDecimals)
}

// TopItems ranks items by quantity sold, highest first. Ties keep the order
// in which items were first sold. limit <= 0 uses DefaultTopItemsLimit.
func TopItems(orders []model.Order, r DateRange, cat catalog.Catalog, limit int) []ItemSales {
	if limit <= 0 {
		limit = DefaultTopItemsLimit
	}

	index := make(map[string]int)
	var rows []ItemSales
	for _, o := range Realized(orders, r) {
		for _, li := range o.Items {
			name := UnknownItemName
			if it, ok := cat.Lookup(li.ItemID); ok {
				name = it.Name
			}
			idx, ok := index[name]
			if !ok {
				idx = len(rows)
				index[name] = idx
				rows = append(rows, ItemSales{Name: name, Revenue: decimal.Zero})
			}
			rows[idx].Quantity += li.Quantity
			rows[idx].Revenue = rows[idx].Revenue.Add(cat.Price(li.ItemID).Mul(decimal.NewFromInt(int64(li.Quantity))))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Quantity > rows[j].Quantity
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []ItemSales{}
	}
	return rows
}

// TrendSeries buckets realized sales by calendar day in the range's
// location. Only days with sales appear, ascending, and only the most recent
// maxPoints are kept. maxPoints <= 0 uses DefaultTrendPoints.
func TrendSeries(orders []model.Order, r DateRange, cat catalog.Catalog, maxPoints int) []TrendPoint {
	if maxPoints <= 0 {
		maxPoints = DefaultTrendPoints
	}
	loc := r.Start.Location()

	byDay := make(map[string]*TrendPoint)
	var days []string
	for _, o := range Realized(orders, r) {
		t := o.CreatedAt.In(loc)
		key := t.Format("2006-01-02")
		p, ok := byDay[key]
		if !ok {
			p = &TrendPoint{Date: key, Label: t.Format("Jan 2"), Total: decimal.Zero}
			byDay[key] = p
			days = append(days, key)
		}
		p.Count++
		p.Total = p.Total.Add(OrderValue(o, cat))
	}

	sort.Strings(days)
	if len(days) > maxPoints {
		days = days[len(days)-maxPoints:]
	}
	out := make([]TrendPoint, len(days))
	for i, d := range days {
		out[i] = *byDay[d]
	}
	return out
}

// ByOrderType splits realized sales by order type, dine-in first.
func ByOrderType(orders []model.Order, r DateRange, cat catalog.Catalog) []OrderTypeSales {
	out := []OrderTypeSales{
		{OrderType: enum.OrderTypeDineIn, Total: decimal.Zero},
		{OrderType: enum.OrderTypeTakeOut, Total: decimal.Zero},
	}
	for _, o := range Realized(orders, r) {
		for i := range out {
			if out[i].OrderType == o.OrderType {
				out[i].Count++
				out[i].Total = out[i].Total.Add(OrderValue(o, cat))
			}
		}
	}
	return out
}

// HourlySalesInRange groups realized sales by hour of day in the range's
// location. Hours without sales are omitted.
func HourlySalesInRange(orders []model.Order, r DateRange, cat catalog.Catalog) []HourlySales {
	loc := r.Start.Location()
	var hours [24]*HourlySales
	for _, o := range Realized(orders, r) {
		h := o.CreatedAt.In(loc).Hour()
		if hours[h] == nil {
			hours[h] = &HourlySales{Hour: h, Total: decimal.Zero}
		}
		hours[h].Count++
		hours[h].Total = hours[h].Total.Add(OrderValue(o, cat))
	}
	out := []HourlySales{}
	for _, h := range hours {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// Reporter resolves named periods against a clock and calendar and runs the
// aggregates over them.
type Reporter struct {
	cal Calendar
	now func() time.Time
}

// NewReporter creates a Reporter using the wall clock.
func NewReporter(cal Calendar) *Reporter {
	return &Reporter{cal: cal, now: time.Now}
}

// WithClock replaces the reporter's clock.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Calendar returns the reporter's calendar.
func (r *Reporter) Calendar() Calendar { return r.cal }

// Resolve returns the concrete range of p as of now.
func (r *Reporter) Resolve(p Period) (DateRange, error) {
	return ResolveDateRange(p, r.now(), r.cal)
}

// SalesForPeriod aggregates realized sales for p.
func (r *Reporter) SalesForPeriod(orders []model.Order, p Period, cat catalog.Catalog) (Summary, error) {
	rng, err := r.Resolve(p)
	if err != nil {
		return Summary{}, err
	}
	return SalesInRange(orders, rng, cat), nil
}

// ComparisonFor compares p with its canonical comparison period.
func (r *Reporter) ComparisonFor(orders []model.Order, p Period, cat catalog.Catalog) (Comparison, error) {
	now := r.now()
	cur, err := ResolveDateRange(p, now, r.cal)
	if err != nil {
		return Comparison{}, err
	}
	prev, err := ComparisonRange(p, cur, now, r.cal)
	if err != nil {
		return Comparison{}, err
	}
	return Compare(orders, cur, prev, cat), nil
}

// ComparisonRange returns the window current is compared against as of now.
// Custom ranges compare with the preceding window of equal length.
func (r *Reporter) ComparisonRange(p Period, current DateRange) (DateRange, error) {
	if p == PeriodCustom {
		return PrecedingRange(current), nil
	}
	return ComparisonRange(p, current, r.now(), r.cal)
}

// TopItems ranks items sold in p.
func (r *Reporter) TopItems(orders []model.Order, p Period, cat catalog.Catalog, limit int) ([]ItemSales, error) {
	rng, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	return TopItems(orders, rng, cat, limit), nil
}

// TrendSeries returns the daily trend of p.
func (r *Reporter) TrendSeries(orders []model.Order, p Period, cat catalog.Catalog, maxPoints int) ([]TrendPoint, error) {
	rng, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	return TrendSeries(orders, rng, cat, maxPoints), nil
}
