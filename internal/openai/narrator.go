package openai

import (
	"context"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/shopspring/decimal"
)

// NarrationInput is the projection digest handed to the model.
type NarrationInput struct {
	Symbol            string
	Amount            decimal.Decimal
	StartYear         int
	FinalValue        decimal.Decimal
	HorizonDays       int
	Scenarios         int
	Mean              decimal.Decimal
	Median            decimal.Decimal
	Lower             decimal.Decimal
	Upper             decimal.Decimal
	PercentileLevel   float64
	ProbabilityOfLoss float64
	AnnualDrift       float64
	AnnualVolatility  float64
}

type Narrator struct {
	cli oa.Client
}

func NewNarrator(apiKey string, opts ...option.RequestOption) *Narrator {
	client := oa.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Narrator{cli: client}
}

const narratorPrompt = `You are a cautious financial educator. You receive the output of a Monte Carlo projection of a single stock holding, simulated with geometric Brownian motion calibrated on its own daily history.

Write a short plain-text commentary (at most 120 words) that:
- States what the holding is worth today versus what was invested
- Explains the median outcome and the lower-tail outcome in plain words
- Mentions the probability of ending below today's value
- Reminds the reader that the model assumes constant drift and volatility and is not a forecast

Do not use markdown headings. Do not give buy or sell advice.`

func (n *Narrator) Narrate(ctx context.Context, in NarrationInput) (string, error) {
	resp, err := n.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: "gpt-4",
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(narratorPrompt),
			oa.UserMessage(narrationPrompt(in)),
		},
		MaxTokens: oa.Int(400),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func narrationPrompt(in NarrationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", strings.ToUpper(in.Symbol))
	fmt.Fprintf(&b, "Invested: %s at the start of %d\n", in.Amount.StringFixed(2), in.StartYear)
	fmt.Fprintf(&b, "Value today: %s\n", in.FinalValue.StringFixed(2))
	fmt.Fprintf(&b, "Historical annualized drift: %.2f%%, volatility: %.2f%%\n", in.AnnualDrift*100, in.AnnualVolatility*100)
	fmt.Fprintf(&b, "Projection: %d scenarios over %d trading days\n", in.Scenarios, in.HorizonDays)
	fmt.Fprintf(&b, "Terminal value mean: %s, median: %s\n", in.Mean.StringFixed(2), in.Median.StringFixed(2))
	fmt.Fprintf(&b, "Terminal value P%g: %s, P%g: %s\n",
		in.PercentileLevel*100, in.Lower.StringFixed(2), (1-in.PercentileLevel)*100, in.Upper.StringFixed(2))
	fmt.Fprintf(&b, "Probability of ending below today's value: %.1f%%\n", in.ProbabilityOfLoss*100)
	return b.String()
}
