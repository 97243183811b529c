package telegram

import (
	"encoding/json"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	h   *Handlers
	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewBot(token, webhookURL string, svc Forecaster, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	// set webhook
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	log.Info().Str("component", "telegram").Str("webhook", webhookURL).Msg("webhook set")

	return newBot(api, svc, log), nil
}

func newBot(sender Sender, svc Forecaster, log zerolog.Logger) *Bot {
	l := log.With().Str("component", "telegram").Logger()
	return &Bot{h: NewHandlers(sender, svc, l), log: l}
}

// WebhookHandler is registered at /telegram/webhook. Messages are handled
// in the background so Telegram gets its 200 immediately.
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if update.Message == nil || update.Message.Chat == nil {
		b.log.Debug().Int("update_id", update.UpdateID).Msg("non-message update received")
		w.WriteHeader(http.StatusOK)
		return
	}
	b.log.Info().Int64("chat_id", update.Message.Chat.ID).Str("text", update.Message.Text).Msg("webhook")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.h.HandleMessage(update.Message)
	}()
	w.WriteHeader(http.StatusOK)
}

// Wait blocks until in-flight messages are handled.
func (b *Bot) Wait() { b.wg.Wait() }
