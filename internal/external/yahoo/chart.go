package yahoo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/moneyflow/internal/contracts"
)

// priceScale: Yahoo float 노이즈 제거 (219.0399932861328 → 219.04)
const priceScale = 4

// chartResponse is the /v8/finance/chart payload
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// parseChart converts a chart payload into session rows, oldest first.
// Rows without close or volume, or with close <= 0, are dropped. When the
// provider repeats a session (live bar), the last row wins.
func parseChart(symbol string, body []byte) ([]contracts.QuoteRow, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]
	loc := exchangeLocation(result.Meta.ExchangeTimezoneName)

	rows := make([]contracts.QuoteRow, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}

		price := decimal.NewFromFloat(*quote.Close[i]).Round(priceScale)
		volume := *quote.Volume[i]
		if !price.IsPositive() || volume < 0 {
			continue
		}

		row := contracts.QuoteRow{
			Symbol:      symbol,
			SessionDate: sessionDate(ts, loc),
			Close:       price,
			Volume:      volume,
		}

		if n := len(rows); n > 0 && !rows[n-1].SessionDate.Before(row.SessionDate) {
			if rows[n-1].SessionDate.Equal(row.SessionDate) {
				rows[n-1] = row
			}
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

// sessionDate returns the exchange-local calendar date as UTC midnight
func sessionDate(ts int64, loc *time.Location) time.Time {
	y, m, d := time.Unix(ts, 0).In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var newYork = loadLocation("America/New_York", time.FixedZone("EST", -5*60*60))

func exchangeLocation(name string) *time.Location {
	if name == "" {
		return newYork
	}
	return loadLocation(name, newYork)
}

func loadLocation(name string, fallback *time.Location) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

// chartRange picks the smallest range covering the requested sessions.
// Two sessions use 5d so weekends and holidays still leave a pair.
func chartRange(sessions int) string {
	switch {
	case sessions <= 1:
		return "1d"
	case sessions <= 2:
		return "5d"
	case sessions <= 15:
		return "1mo"
	default:
		return "3mo"
	}
}
