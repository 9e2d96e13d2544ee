package mapper

import (
	"testing"

	"github.com/longportapp/openapi-go/trade"
	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestMapLongportPush(t *testing.T) {
	ev, ok := MapLongportPush(&trade.PushEvent{
		Event: "order_changed",
		Data: &trade.PushOrderChanged{
			OrderId:          "701",
			Symbol:           "AAPL.US",
			Side:             trade.OrderSideSell,
			Status:           trade.OrderPartialFilledStatus,
			Quantity:         dec("10"),
			ExecutedQuantity: dec("4"),
			ExecutedPrice:    dec("181.25"),
			Msg:              "partial",
		},
	})
	if !ok {
		t.Fatalf("expected event to map")
	}
	if ev.OrderID != "701" || ev.Symbol != "AAPL.US" || ev.Side != "Sell" {
		t.Fatalf("unexpected identity fields: %+v", ev)
	}
	if ev.Status != "PartialFilledStatus" {
		t.Fatalf("expected PartialFilledStatus, got %s", ev.Status)
	}
	if !ev.Quantity.Equal(decimal.NewFromInt(10)) || !ev.ExecutedQuantity.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected quantities: %s / %s", ev.Quantity, ev.ExecutedQuantity)
	}
	if ev.ExecutedPrice.String() != "181.25" || ev.Message != "partial" || ev.ReceivedAt.IsZero() {
		t.Fatalf("unexpected execution fields: %+v", ev)
	}

	if _, ok := MapLongportPush(&trade.PushEvent{Event: "order_changed"}); ok {
		t.Fatalf("expected event without payload to be dropped")
	}
	if _, ok := MapLongportPush(nil); ok {
		t.Fatalf("expected nil event to be dropped")
	}
}

func TestMapLongportBalances(t *testing.T) {
	out := MapLongportBalances([]*trade.AccountBalance{
		nil,
		{
			Currency:          "USD",
			TotalCash:         dec("1000"),
			NetAssets:         dec("5000"),
			InitMargin:        dec("800"),
			MaintenanceMargin: dec("600"),
			CashInfos: []*trade.CashInfo{
				{Currency: "HKD", AvailableCash: dec("90")},
				{Currency: "USD", AvailableCash: dec("700")},
			},
		},
		{
			Currency:  "HKD",
			CashInfos: []*trade.CashInfo{nil, {Currency: "USD", AvailableCash: dec("12")}},
		},
		{Currency: "SGD"},
	})

	if len(out) != 3 {
		t.Fatalf("expected 3 balances, got %d", len(out))
	}

	usd := out[0]
	if usd.Currency != "USD" || !usd.NetAssets.Equal(decimal.NewFromInt(5000)) || !usd.InitMargin.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("unexpected USD balance: %+v", usd)
	}
	if !usd.AvailableCash.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected cash in balance currency, got %s", usd.AvailableCash)
	}
	if !out[1].AvailableCash.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected first cash entry as fallback, got %s", out[1].AvailableCash)
	}
	if !out[2].AvailableCash.IsZero() || !out[2].TotalCash.IsZero() {
		t.Fatalf("expected zero values without cash infos, got %+v", out[2])
	}
}
