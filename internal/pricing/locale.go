package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

var ErrUnsupportedCurrency = errors.New("pricing: unsupported currency")

var supportedLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "hi": true, "ja": true,
}

type countryLocale struct {
	language string
	currency string
}

var countryDefaults = map[string]countryLocale{
	"US": {"en", "USD"},
	"GB": {"en", "GBP"},
	"IN": {"hi", "INR"},
	"JP": {"ja", "JPY"},
	"CA": {"en", "CAD"},
	"AU": {"en", "AUD"},
	"AR": {"es", "ARS"},
	"ES": {"es", "EUR"},
	"FR": {"fr", "EUR"},
	"DE": {"de", "EUR"},
}

func DefaultSelection() models.LocaleSelection {
	return models.LocaleSelection{Language: "en", Currency: BaseCurrency}
}

// SelectionForCountry maps an ISO 3166 country code from a geolocation hint
// to a default selection.
func SelectionForCountry(country string) models.LocaleSelection {
	if l, ok := countryDefaults[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return models.LocaleSelection{Language: l.language, Currency: l.currency}
	}
	return DefaultSelection()
}

// Locales keeps the per-session language and currency selection.
type Locales struct {
	mirror store.Mirror
}

func NewLocales(mirror store.Mirror) *Locales {
	return &Locales{mirror: mirror}
}

// Get returns the stored selection. The first call for a session derives one
// from country and stores it.
func (l *Locales) Get(ctx context.Context, session, country string) (models.LocaleSelection, error) {
	var sel models.LocaleSelection
	found, err := store.GetJSON(ctx, l.mirror, session, store.KeyLocale, &sel)
	if err != nil {
		return DefaultSelection(), fmt.Errorf("read locale: %w", err)
	}
	if found {
		return sel, nil
	}

	sel = SelectionForCountry(country)
	if err := store.PutJSON(ctx, l.mirror, session, store.KeyLocale, sel); err != nil {
		return sel, fmt.Errorf("store locale: %w", err)
	}
	return sel, nil
}

// Set applies an explicit user override. Empty fields keep the current value.
func (l *Locales) Set(ctx context.Context, session string, override models.LocaleSelection) (models.LocaleSelection, error) {
	override.Currency = strings.ToUpper(strings.TrimSpace(override.Currency))
	override.Language = strings.ToLower(strings.TrimSpace(override.Language))

	if override.Currency != "" && !Supported(override.Currency) {
		return models.LocaleSelection{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, override.Currency)
	}

	var result models.LocaleSelection
	err := store.MutateJSON(ctx, l.mirror, session, store.KeyLocale, func(sel *models.LocaleSelection, exists bool) (bool, error) {
		if !exists {
			*sel = DefaultSelection()
		}
		if override.Currency != "" {
			sel.Currency = override.Currency
		}
		if override.Language != "" && supportedLanguages[override.Language] {
			sel.Language = override.Language
		}
		result = *sel
		return true, nil
	})
	if err != nil {
		return models.LocaleSelection{}, fmt.Errorf("store locale: %w", err)
	}
	return result, nil
}
