package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMissingDeliveryCountry = errors.New("delivery country is required to compute taxes")

// CartItem prices are untaxed. TaxRate applies when CountryTaxRates has no
// entry for the delivery country.
type CartItem struct {
	ProductRef      string                     `json:"product_ref"`
	Title           string                     `json:"title"`
	Quantity        int64                      `json:"quantity" binding:"min=0"`
	UnitPrice       decimal.Decimal            `json:"unit_price"`
	TaxRate         decimal.Decimal            `json:"tax_rate"`
	CountryTaxRates map[string]decimal.Decimal `json:"country_tax_rates,omitempty"`
}

// Cart is the snapshot of a storefront cart at the time of a mutation.
type Cart struct {
	ID       string     `json:"id"`
	Currency string     `json:"currency" binding:"required"`
	Items    []CartItem `json:"items"`
}

// OrderDraft carries the parts of the pending order that affect the charge.
type OrderDraft struct {
	Postage         decimal.Decimal `json:"postage"`
	DeliveryCountry string          `json:"delivery_country"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
}

func (i CartItem) rateFor(country string) decimal.Decimal {
	if r, ok := i.CountryTaxRates[strings.ToUpper(country)]; ok {
		return r
	}
	return i.TaxRate
}

// TaxedAmount returns the cart total including taxes for the delivery country.
// Unit prices are taxed and rounded to cents before being multiplied by the quantity.
func (c Cart) TaxedAmount(country string) (decimal.Decimal, error) {
	if strings.TrimSpace(country) == "" {
		return decimal.Zero, ErrMissingDeliveryCountry
	}
	total := decimal.Zero
	for _, item := range c.Items {
		taxed := item.UnitPrice.Mul(decimal.NewFromInt(1).Add(item.rateFor(country))).Round(2)
		total = total.Add(taxed.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total, nil
}
