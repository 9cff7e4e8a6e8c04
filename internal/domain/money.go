package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Price is one cell of the pricing matrix: either a fixed per-person amount
// or the "on request" sentinel (no published price; quoted manually). The
// variant is carried in the type so call sites branch on IsOnRequest instead
// of comparing magic values. The zero value is a zero amount, not on-request.
type Price struct {
	amount    decimal.Decimal
	onRequest bool
}

// PriceOf returns a fixed per-person price.
func PriceOf(amount decimal.Decimal) Price { return Price{amount: amount} }

// OnRequestPrice returns the "on request" sentinel.
func OnRequestPrice() Price { return Price{onRequest: true} }

// IsOnRequest reports whether the price is the "on request" sentinel.
func (p Price) IsOnRequest() bool { return p.onRequest }

// Amount returns the per-person amount; zero when on request.
func (p Price) Amount() decimal.Decimal {
	if p.onRequest {
		return decimal.Zero
	}
	return p.amount
}

// Equals reports whether two prices are the same variant and, for fixed
// prices, the same amount.
func (p Price) Equals(o Price) bool {
	if p.onRequest || o.onRequest {
		return p.onRequest == o.onRequest
	}
	return p.amount.Equal(o.amount)
}

func (p Price) String() string {
	if p.onRequest {
		return "on request"
	}
	return p.amount.String()
}

type priceJSON struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	OnRequest bool             `json:"onRequest,omitempty"`
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.onRequest {
		return json.Marshal(priceJSON{OnRequest: true})
	}
	amt := p.amount
	return json.Marshal(priceJSON{Amount: &amt})
}

func (p *Price) UnmarshalJSON(b []byte) error {
	var pj priceJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return err
	}
	if pj.OnRequest {
		*p = Price{onRequest: true}
		return nil
	}
	if pj.Amount != nil {
		*p = Price{amount: *pj.Amount}
		return nil
	}
	*p = Price{}
	return nil
}
