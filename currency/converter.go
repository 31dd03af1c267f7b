package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource yields how many units of the target currency one unit of the
// source currency buys.
type RateSource interface {
	Rate(ctx context.Context, from string, to string) (float64, error)
}

type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) *Converter {
	return &Converter{
		rates: rates,
	}
}

// Convert turns an integer minor-unit amount from one currency into another.
// Equal currencies are an identity, no rate lookup happens. The result is
// rounded half away from zero to a whole minor unit.
func (c *Converter) Convert(ctx context.Context, amount int64, from string, to string) (int64, error) {
	if from == to {
		return amount, nil
	}

	rate, err := c.rates.Rate(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	converted := int64(math.Round(rate * float64(amount)))

	slog.Info("converted amount",
		slog.String("from", from),
		slog.String("to", to),
		slog.Float64("rate", rate),
		slog.Int64("amount", amount),
		slog.Int64("converted", converted))

	return converted, nil
}
