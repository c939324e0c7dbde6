package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"10", "USD", "$10.00"},
		{"10", "eur", "€9.20"},
		{"19.99", "INR", "₹1661.57"},
		{"0.5", "GBP", "£0.40"},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			got := FormatPrice(decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPriceFallsBackToBaseCurrency(t *testing.T) {
	ten := decimal.NewFromInt(10)

	assert.Equal(t, FormatPrice(ten, BaseCurrency), FormatPrice(ten, "XYZ"))
	assert.Equal(t, FormatPrice(ten, BaseCurrency), FormatPrice(ten, ""))
	assert.True(t, Convert(ten, "XYZ").Equal(ten))
}

func TestSelectionForCountry(t *testing.T) {
	assert.Equal(t, models.LocaleSelection{Language: "hi", Currency: "INR"}, SelectionForCountry("in"))
	assert.Equal(t, DefaultSelection(), SelectionForCountry("ZZ"))
}

func TestLocalesDeriveOnceThenOverride(t *testing.T) {
	ctx := context.Background()
	l := NewLocales(store.NewMemoryMirror())

	sel, err := l.Get(ctx, "s1", "FR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", sel.Currency)

	// Later geolocation hints do not replace the stored selection.
	sel, err = l.Get(ctx, "s1", "JP")
	require.NoError(t, err)
	assert.Equal(t, "EUR", sel.Currency)

	sel, err = l.Set(ctx, "s1", models.LocaleSelection{Currency: "gbp"})
	require.NoError(t, err)
	assert.Equal(t, models.LocaleSelection{Language: "fr", Currency: "GBP"}, sel)

	_, err = l.Set(ctx, "s1", models.LocaleSelection{Currency: "XYZ"})
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}
