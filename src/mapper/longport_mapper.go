package mapper

import (
	"strings"
	"time"

	"github.com/longportapp/openapi-go/quote"
	"github.com/longportapp/openapi-go/trade"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

// MapLongportOrder converts a Longport order into the gateway order shape
// with a normalized status.
func MapLongportOrder(o *trade.Order) gateway.Order {
	if o == nil {
		return gateway.Order{}
	}
	return gateway.Order{
		OrderID:          o.OrderId,
		Symbol:           o.Symbol,
		Side:             ToString(o.Side),
		OrderType:        ToString(o.OrderType),
		Status:           orderstatus.Normalize(ToString(o.Status)),
		Quantity:         ToDecimal(o.Quantity),
		ExecutedQuantity: ToDecimal(o.ExecutedQuantity),
		Price:            ToDecimal(o.Price),
		ExecutedPrice:    ToDecimal(o.ExecutedPrice),
		Message:          o.Msg,
		SubmittedAt:      ToTime(o.SubmittedAt),
	}
}

func MapLongportOrders(orders []*trade.Order) []gateway.Order {
	out := make([]gateway.Order, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		out = append(out, MapLongportOrder(o))
	}
	return out
}

func MapLongportOrderDetail(d *trade.OrderDetail) *gateway.OrderDetail {
	if d == nil {
		return nil
	}
	return &gateway.OrderDetail{
		Order: gateway.Order{
			OrderID:          d.OrderId,
			Symbol:           d.Symbol,
			Side:             ToString(d.Side),
			OrderType:        ToString(d.OrderType),
			Status:           orderstatus.Normalize(ToString(d.Status)),
			Quantity:         ToDecimal(d.Quantity),
			ExecutedQuantity: ToDecimal(d.ExecutedQuantity),
			Price:            ToDecimal(d.Price),
			ExecutedPrice:    ToDecimal(d.ExecutedPrice),
			Message:          d.Msg,
			SubmittedAt:      ToTime(d.SubmittedAt),
		},
		Fees: chargeTotal(d),
	}
}

// chargeTotal reads the order's total charges. Detail payloads for orders
// that never traded omit the charge block.
func chargeTotal(d *trade.OrderDetail) (fees decimal.Decimal) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]interface{}{
				"mapper":  "chargeTotal",
				"orderID": d.OrderId,
			}).Debug("Order detail has no charge block")
			fees = decimal.Zero
		}
	}()
	return ToDecimal(d.ChargeDetail.TotalAmount)
}

func MapLongportPositions(channels []*trade.StockPositionChannel) []gateway.Position {
	var out []gateway.Position
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		for _, p := range ch.Positions {
			if p == nil {
				continue
			}
			out = append(out, gateway.Position{
				Symbol:            p.Symbol,
				Quantity:          ToDecimal(p.Quantity),
				AvailableQuantity: ToDecimal(p.AvailableQuantity),
				CostPrice:         ToDecimal(p.CostPrice),
				Currency:          p.Currency,
			})
		}
	}
	return out
}

func MapLongportBalances(balances []*trade.AccountBalance) []gateway.AccountBalance {
	out := make([]gateway.AccountBalance, 0, len(balances))
	for _, b := range balances {
		if b == nil {
			continue
		}
		out = append(out, gateway.AccountBalance{
			Currency:          b.Currency,
			TotalCash:         ToDecimal(b.TotalCash),
			NetAssets:         ToDecimal(b.NetAssets),
			InitMargin:        ToDecimal(b.InitMargin),
			MaintenanceMargin: ToDecimal(b.MaintenanceMargin),
			AvailableCash:     availableCash(b),
		})
	}
	return out
}

// availableCash reads the cash entry in the balance currency, or the first
// entry when none matches.
func availableCash(b *trade.AccountBalance) decimal.Decimal {
	var fallback *trade.CashInfo
	for _, c := range b.CashInfos {
		if c == nil {
			continue
		}
		if strings.EqualFold(c.Currency, b.Currency) {
			return ToDecimal(c.AvailableCash)
		}
		if fallback == nil {
			fallback = c
		}
	}
	if fallback == nil {
		return decimal.Zero
	}
	return ToDecimal(fallback.AvailableCash)
}

func MapLongportQuotes(quotes []*quote.SecurityQuote) []gateway.Quote {
	out := make([]gateway.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q == nil {
			continue
		}
		out = append(out, gateway.Quote{
			Symbol:    q.Symbol,
			Last:      ToDecimal(q.LastDone),
			Timestamp: ToTime(q.Timestamp),
		})
	}
	return out
}

func MapLongportOptionQuotes(quotes []*quote.OptionQuote) []gateway.Quote {
	out := make([]gateway.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q == nil {
			continue
		}
		out = append(out, gateway.Quote{
			Symbol:    q.Symbol,
			Last:      ToDecimal(q.LastDone),
			Timestamp: ToTime(q.Timestamp),
		})
	}
	return out
}

func MapLongportDepth(d *quote.SecurityDepth) *gateway.Depth {
	if d == nil {
		return nil
	}
	out := &gateway.Depth{Symbol: d.Symbol}
	for _, a := range d.Ask {
		if a == nil {
			continue
		}
		out.Asks = append(out.Asks, gateway.DepthLevel{Price: ToDecimal(a.Price), Volume: ToDecimal(a.Volume).IntPart()})
	}
	for _, b := range d.Bid {
		if b == nil {
			continue
		}
		out.Bids = append(out.Bids, gateway.DepthLevel{Price: ToDecimal(b.Price), Volume: ToDecimal(b.Volume).IntPart()})
	}
	return out
}

func MapLongportStaticInfo(infos []*quote.StaticInfo) []gateway.StaticInfo {
	out := make([]gateway.StaticInfo, 0, len(infos))
	for _, s := range infos {
		if s == nil {
			continue
		}
		out = append(out, gateway.StaticInfo{
			Symbol:  s.Symbol,
			LotSize: ToDecimal(s.LotSize).IntPart(),
		})
	}
	return out
}

// MapLongportPush converts a private-topic push. ok is false for events
// without an order payload.
func MapLongportPush(e *trade.PushEvent) (gateway.PushEvent, bool) {
	if e == nil || e.Data == nil {
		return gateway.PushEvent{}, false
	}
	d := e.Data
	return gateway.PushEvent{
		OrderID:          d.OrderId,
		Symbol:           d.Symbol,
		Side:             ToString(d.Side),
		Status:           orderstatus.Normalize(ToString(d.Status)),
		Quantity:         ToDecimal(d.Quantity),
		ExecutedQuantity: ToDecimal(d.ExecutedQuantity),
		ExecutedPrice:    ToDecimal(d.ExecutedPrice),
		Message:          d.Msg,
		ReceivedAt:       time.Now(),
	}, true
}

// MapSubmitRequest builds the Longport order request. Enum values are the
// broker's wire strings and pass through unchanged.
func MapSubmitRequest(req gateway.SubmitRequest) *trade.SubmitOrder {
	order := &trade.SubmitOrder{
		Symbol:            req.Symbol,
		OrderType:         trade.OrderType(strings.ToUpper(req.OrderType)),
		Side:              trade.OrderSide(req.Side),
		SubmittedQuantity: req.Quantity,
		TimeInForce:       trade.TimeType(req.TimeInForce),
		Remark:            req.Remark,
		ExpireDate:        req.ExpireDate,
	}
	if req.OutsideRTH != "" {
		order.OutsideRTH = trade.OutsideRTH(req.OutsideRTH)
	}
	if req.Price != nil {
		order.SubmittedPrice = *req.Price
	}
	if req.TriggerPrice != nil {
		order.TriggerPrice = *req.TriggerPrice
	}
	if req.LimitOffset != nil {
		order.LimitOffset = *req.LimitOffset
	}
	if req.TrailingAmount != nil {
		order.TrailingAmount = *req.TrailingAmount
	}
	if req.TrailingPercent != nil {
		order.TrailingPercent = *req.TrailingPercent
	}
	return order
}

func MapReplaceRequest(req gateway.ReplaceRequest) *trade.ReplaceOrder {
	order := &trade.ReplaceOrder{
		OrderId:  req.OrderID,
		Quantity: req.Quantity,
	}
	if req.Price != nil {
		order.Price = *req.Price
	}
	return order
}
