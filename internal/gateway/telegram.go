package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway answers questions from a chat and pushes notifications to it.
type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Asker  Asker
	ChatID int64
}

func NewTelegramGateway(token string, chatID int64, asker Asker) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newTelegramGateway(bot, chatID, asker), nil
}

func newTelegramGateway(bot *tgbotapi.BotAPI, chatID int64, asker Asker) *TelegramGateway {
	log.Printf("Authorized on account %s", bot.Self.UserName)
	return &TelegramGateway{Bot: bot, Asker: asker, ChatID: chatID}
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || tg.Asker == nil {
				continue
			}
			log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

			response, err := tg.Asker.Ask(ctx, update.Message.Text)
			if err != nil {
				log.Printf("Error answering: %v", err)
				response = "I couldn't answer that: " + err.Error()
			}
			if _, err := tg.Bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, response)); err != nil {
				log.Printf("Error replying: %v", err)
			}
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

// Notify sends n to the configured chat.
func (tg *TelegramGateway) Notify(_ context.Context, n Notification) error {
	return tg.Send(strconv.FormatInt(tg.ChatID, 10), fmt.Sprintf("*%s*\n\n%s", n.Title, n.Body))
}
