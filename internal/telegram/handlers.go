package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegramBotForecast/internal/finance"
	"telegramBotForecast/internal/forecast"
	"telegramBotForecast/internal/simulation"
	"telegramBotForecast/internal/storage"
)

var (
	// /history
	reHistory = regexp.MustCompile(`^/history(?:@[\w_]+)?$`)
	// /help
	reHelp = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
)

const (
	runTimeout   = 90 * time.Second
	historyLimit = 5
)

// Forecaster runs projections and lists past runs.
type Forecaster interface {
	Run(ctx context.Context, q forecast.Query) (*forecast.Report, error)
	RecentRuns(chatID int64, limit int) ([]storage.RunRecord, error)
}

type Handlers struct {
	api Sender
	svc Forecaster
	log zerolog.Logger
	now func() time.Time
}

func NewHandlers(api Sender, svc Forecaster, log zerolog.Logger) *Handlers {
	return &Handlers{api: api, svc: svc, log: log, now: time.Now}
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	txt := strings.TrimSpace(m.Text)
	switch {
	case reSimulate.MatchString(txt):
		q, err := ParseSimulate(txt, h.now())
		if err != nil {
			h.reply(m.Chat.ID, err.Error())
			return
		}
		q.ChatID = m.Chat.ID
		h.handleSimulate(m.Chat.ID, q)

	case reHistory.MatchString(txt):
		h.handleHistory(m.Chat.ID)

	case reHelp.MatchString(txt):
		h.handleHelp(m.Chat.ID)
	}
}

func (h *Handlers) handleSimulate(chatID int64, q forecast.Query) {
	h.reply(chatID, fmt.Sprintf("Simulating %s…", q.Symbol))

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	rep, err := h.svc.Run(ctx, q)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", q.Symbol).Int64("chat_id", chatID).Msg("simulate failed")
		h.reply(chatID, failureText(q.Symbol, err))
		return
	}

	sym := rep.Query.Symbol
	if rep.HistoryChart != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: sym + "_history.png", Bytes: rep.HistoryChart})
		photo.Caption = fmt.Sprintf("%s • %s invested in %d", sym, rep.Query.Amount.StringFixed(2), rep.Query.StartYear)
		h.send(photo)
	}
	if rep.ProjectionChart != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: sym + "_projection.png", Bytes: rep.ProjectionChart})
		photo.Caption = fmt.Sprintf("%s • %d days • %d scenarios", sym, rep.Query.HorizonDays, rep.Query.Scenarios)
		h.send(photo)
	}
	h.reply(chatID, rep.Summary())
	if rep.Narration != "" {
		h.reply(chatID, rep.Narration)
	}
}

func failureText(sym string, err error) string {
	switch {
	case errors.Is(err, finance.ErrNoData):
		return fmt.Sprintf("No data found for symbol '%s'. Check the symbol.", sym)
	case errors.Is(err, simulation.ErrInsufficientData):
		return fmt.Sprintf("Not enough price history for %s to estimate returns. Try an earlier start year.", sym)
	}
	return fmt.Sprintf("Couldn’t simulate %s: %v", sym, err)
}

func (h *Handlers) handleHistory(chatID int64) {
	runs, err := h.svc.RecentRuns(chatID, historyLimit)
	if err != nil {
		h.reply(chatID, "History failed: "+err.Error())
		return
	}
	if len(runs) == 0 {
		h.reply(chatID, "No simulations yet. Try /simulate AAPL")
		return
	}
	h.reply(chatID, formatRuns(runs))
}

func formatRuns(runs []storage.RunRecord) string {
	var b strings.Builder
	b.WriteString("Recent simulations")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n\n%s %s • %s since %d\nvalue %s • median %s • low %s",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Amount.StringFixed(2), r.StartDate.Year(),
			r.FinalValue.StringFixed(2), r.MedianValue.StringFixed(2), r.LowerValue.StringFixed(2))
		fmt.Fprintf(&b, "\n%dd × %d", r.HorizonDays, r.Scenarios)
		if r.Seed != nil {
			fmt.Fprintf(&b, " • seed=%d", *r.Seed)
		}
	}
	return b.String()
}

func (h *Handlers) handleHelp(chatID int64) {
	help := "Commands\n\n" +
		"- /simulate SYMBOL [AMOUNT] [START_YEAR] [HORIZON] [SCENARIOS] [seed=N] - Replay a holding bought at the start of START_YEAR and project it forward with Monte Carlo paths\n" +
		"- /history - Your last 5 simulations\n" +
		"- /help - This message\n" +
		fmt.Sprintf("\nLimits: start year %d or later, horizon up to %d trading days, up to %d scenarios. Add seed=N to reproduce a run.",
			forecast.MinStartYear, forecast.MaxHorizonDays, forecast.MaxScenarios)
	h.reply(chatID, help)
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.log.Warn().Err(err).Msg("send failed")
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}
