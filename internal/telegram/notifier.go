package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/elbekdev/atelier/internal/models"
)

// ErrBotNotStarted means the recipient has never opened a conversation with
// the bot, so Telegram refuses delivery. Distinguished from generic failures
// so the UI can link the user to the bot instead of showing a dead end.
var ErrBotNotStarted = errors.New("recipient has not started the bot")

// Sender is the narrow slice of the bot API the notifier needs. *tgbotapi.BotAPI
// satisfies it; tests supply a fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends the two outbound message kinds: operator order summaries
// and OTP codes to end users. Both are fire-and-check: no retries here.
type Notifier struct {
	bot            Sender
	operatorChatID int64
	botUsername    string
	logger         *slog.Logger
}

func NewNotifier(bot Sender, operatorChatID int64, botUsername string, logger *slog.Logger) *Notifier {
	return &Notifier{
		bot:            bot,
		operatorChatID: operatorChatID,
		botUsername:    botUsername,
		logger:         logger,
	}
}

// BotLink is the t.me URL shown when delivery fails with ErrBotNotStarted.
func (n *Notifier) BotLink() string {
	return fmt.Sprintf("https://t.me/%s", n.botUsername)
}

// SendVerificationCode delivers a one-time code to the given Telegram ID.
// "chat not found" responses map to ErrBotNotStarted; everything else is a
// generic delivery failure.
func (n *Notifier) SendVerificationCode(telegramID, code string) error {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram id %q: %w", telegramID, err)
	}

	text := fmt.Sprintf(
		"<b>🔐 ELBEK PRODUCTIONS TASDIQLASH</b>\n➖➖➖➖➖➖➖➖\nSizning tasdiqlash kodingiz:\n<code>%s</code>\n\n⚠️ Bu kodni hech kimga bermang.",
		code,
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		if strings.Contains(err.Error(), "chat not found") {
			n.logger.Info("otp delivery refused, bot not started", slog.String("telegram_id", telegramID))
			return ErrBotNotStarted
		}
		n.logger.Error("otp delivery failed", slog.String("telegram_id", telegramID), slog.Any("error", err))
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	return nil
}

// NotifyOperator posts a formatted order summary to the operator channel.
func (n *Notifier) NotifyOperator(order *models.Order) error {
	msg := tgbotapi.NewMessage(n.operatorChatID, formatOrderSummary(order))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to notify operator: %w", err)
	}
	return nil
}

// formatOrderSummary builds the operator-channel HTML message.
func formatOrderSummary(order *models.Order) string {
	username := strings.TrimPrefix(order.TelegramUsername, "@")
	email := order.Email
	if email == "" {
		email = "Kiritilmagan"
	}

	var b strings.Builder
	b.WriteString("<b>💎 YANGI BEPUL BUYURTMA</b>\n")
	b.WriteString("➖➖➖➖➖➖➖➖\n")
	fmt.Fprintf(&b, "👤 <b>Mijoz:</b> <a href=\"https://t.me/%s\">%s %s</a>\n", username, order.FirstName, order.LastName)
	fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", email)
	fmt.Fprintf(&b, "📱 <b>Tel:</b> %s\n", order.Phone)
	fmt.Fprintf(&b, "🌐 <b>Username:</b> @%s\n", username)
	b.WriteString("➖➖➖➖➖➖➖➖\n")
	fmt.Fprintf(&b, "🎮 <b>O'yin:</b> %s\n", models.GameLabels[order.SelectedGame])
	fmt.Fprintf(&b, "🛠 <b>Xizmat:</b> %s\n", models.DesignLabels[order.SelectedDesign])
	b.WriteString("💰 <b>Narxi:</b> BEPUL (0 so'm)\n")
	if order.Location != nil {
		fmt.Fprintf(&b, "📍 <b>Manzil:</b> %s, %s, %s\n", order.Location.Country, order.Location.Region, order.Location.City)
	}
	b.WriteString("➖➖➖➖➖➖➖➖\n")
	fmt.Fprintf(&b, "📝 <b>Izoh:</b>\n<i>%s</i>", order.Comment)
	return b.String()
}
