package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegramBotForecast/internal/forecast"
)

var (
	// /simulate SYMBOL [AMOUNT] [START_YEAR] [HORIZON] [SCENARIOS] [seed=N]
	reSimulate = regexp.MustCompile(`^/simulate(?:@[\w_]+)?(?:\s+(.*))?$`)
	reSymbol   = regexp.MustCompile(`^[A-Za-z0-9\.^_=+-]+$`)
	reSeed     = regexp.MustCompile(`^seed=(-?\d+)$`)
)

const simulateUsage = "Usage: /simulate SYMBOL [AMOUNT] [START_YEAR] [HORIZON] [SCENARIOS] [seed=N]\ne.g. /simulate AAPL 1000 2019 365 1000"

var errUsage = errors.New(simulateUsage)

// ParseSimulate turns a /simulate command into a query. Omitted arguments
// stay zero so the service defaults apply.
func ParseSimulate(text string, now time.Time) (forecast.Query, error) {
	g := reSimulate.FindStringSubmatch(strings.TrimSpace(text))
	if g == nil {
		return forecast.Query{}, errUsage
	}
	args := strings.Fields(g[1])
	if len(args) == 0 {
		return forecast.Query{}, errUsage
	}
	if !reSymbol.MatchString(args[0]) {
		return forecast.Query{}, fmt.Errorf("invalid symbol %q", args[0])
	}
	q := forecast.Query{Symbol: strings.ToUpper(args[0])}

	var positional []string
	for _, a := range args[1:] {
		if m := reSeed.FindStringSubmatch(strings.ToLower(a)); m != nil {
			seed, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return forecast.Query{}, fmt.Errorf("invalid seed %q", m[1])
			}
			q.Seed = &seed
			continue
		}
		positional = append(positional, a)
	}
	if len(positional) > 4 {
		return forecast.Query{}, errUsage
	}

	if len(positional) > 0 {
		amount, err := decimal.NewFromString(positional[0])
		if err != nil || !amount.IsPositive() {
			return forecast.Query{}, fmt.Errorf("amount must be a positive number, got %q", positional[0])
		}
		q.Amount = amount
	}
	if len(positional) > 1 {
		year, err := strconv.Atoi(positional[1])
		if err != nil || year < forecast.MinStartYear || year > now.Year() {
			return forecast.Query{}, fmt.Errorf("start year must be between %d and %d, got %q", forecast.MinStartYear, now.Year(), positional[1])
		}
		q.StartYear = year
	}
	if len(positional) > 2 {
		n, err := strconv.Atoi(positional[2])
		if err != nil || n < 1 || n > forecast.MaxHorizonDays {
			return forecast.Query{}, fmt.Errorf("horizon must be between 1 and %d days, got %q", forecast.MaxHorizonDays, positional[2])
		}
		q.HorizonDays = n
	}
	if len(positional) > 3 {
		n, err := strconv.Atoi(positional[3])
		if err != nil || n < 1 || n > forecast.MaxScenarios {
			return forecast.Query{}, fmt.Errorf("scenarios must be between 1 and %d, got %q", forecast.MaxScenarios, positional[3])
		}
		q.Scenarios = n
	}
	return q, nil
}
