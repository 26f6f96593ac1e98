package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/focus"
	"github.com/xaenox/globalsync/internal/holiday"
	"github.com/xaenox/globalsync/internal/models"
	"github.com/xaenox/globalsync/internal/scheduling"
	"github.com/xaenox/globalsync/internal/storage"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Defaults struct {
	Timezone  string
	WorkHours models.HourWindow
}

type Bot struct {
	api      API
	storage  storage.Storage
	manager  *focus.Manager
	holidays *holiday.Client
	defaults Defaults
	logger   *zap.Logger
}

// NewBotAPI connects to Telegram with the given token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(api API, storage storage.Storage, manager *focus.Manager, holidays *holiday.Client, defaults Defaults, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		storage:  storage,
		manager:  manager,
		holidays: holidays,
		defaults: defaults,
		logger:   logger,
	}
}

// Start handles updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	if !message.IsCommand() {
		b.sendMessage(message.Chat.ID, "Use /help to see available commands.")
		return
	}
	b.handleCommand(ctx, message)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	args := message.CommandArguments()
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "tz":
		b.handleTimezone(ctx, message, args)
	case "hours":
		b.handleHours(ctx, message, args)
	case "customer":
		b.handleCustomer(ctx, message, args)
	case "notes":
		b.handleNotes(ctx, message, args)
	case "prefhours":
		b.handlePreferredHours(ctx, message, args)
	case "intent":
		b.handleIntent(ctx, message, args)
	case "schedule":
		b.handleSchedule(ctx, message, args)
	case "confirm":
		b.handleConfirm(ctx, message, args)
	case "unconfirm":
		b.handleUnconfirm(ctx, message, args)
	case "remind":
		b.handleRemind(ctx, message, args)
	case "cancel":
		b.handleCancel(ctx, message, args)
	case "delete":
		b.handleDelete(ctx, message, args)
	case "list":
		b.handleList(ctx, message)
	case "holiday":
		b.handleHoliday(ctx, message, args)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	profile, err := b.profile(ctx, message.From.ID)
	if err != nil {
		b.fail(message, "Sorry, I couldn't load your profile.", err)
		return
	}
	profile.ChatID = message.Chat.ID
	if err := b.storage.SaveProfile(ctx, profile); err != nil {
		b.fail(message, "Sorry, I couldn't save your profile.", err)
		return
	}

	welcome := fmt.Sprintf(`Welcome to GlobalSync! 🌍
I find good times to contact customers in other timezones, skipping weekends, public holidays and the times their notes say to avoid.

Your timezone is %s and your working hours are %s.
Use /tz and /hours to change them, then /customer to add someone.
Use /help to see all available commands.`, profile.Timezone, profile.WorkHours)
	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/tz <Area/City> - Set your timezone
/hours <start-end> - Set your working hours, e.g. 9-18
/customer <name> | <Area/City> | [country code] - Add or update a customer
/notes <name> | <text> - Set CRM notes (preferences are read from them)
/prefhours <name> | <start-end or none> - Set the customer's preferred hours
/intent <name> | <text> - Set what the contact is about
/schedule <name> - Recommend a contact time
/confirm <name> | [YYYY-MM-DD HH:MM] - Lock the recommended or a custom time
/unconfirm <name> - Release a confirmed time
/remind <name> | [YYYY-MM-DD HH:MM] - Remind me at the scheduled or a custom time
/cancel <name> - Cancel the reminder
/delete <name> - Remove a customer
/list - Show all customers
/holiday <country> | [YYYY-MM-DD] - Check a date for a public holiday

Custom times are in the customer's timezone.`

	b.sendMessage(message.Chat.ID, help)
}

// profile returns the saved profile or a new one with defaults.
func (b *Bot) profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, err := b.storage.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.UserProfile{
			UserID:    userID,
			Timezone:  b.defaults.Timezone,
			WorkHours: b.defaults.WorkHours,
		}, nil
	}
	return profile, err
}

func (b *Bot) handleTimezone(ctx context.Context, message *tgbotapi.Message, args string) {
	tz := strings.TrimSpace(args)
	if _, err := scheduling.LoadLocation(tz); err != nil {
		b.sendErrorMessage(message.Chat.ID, "Unknown timezone. Use an IANA name such as Europe/London.")
		return
	}
	b.updateProfile(ctx, message, func(p *models.UserProfile) { p.Timezone = tz })
}

func (b *Bot) handleHours(ctx context.Context, message *tgbotapi.Message, args string) {
	hours, err := parseHourWindow(args)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Invalid hours: "+err.Error())
		return
	}
	b.updateProfile(ctx, message, func(p *models.UserProfile) { p.WorkHours = hours })
}

// updateProfile saves the change and recomputes every open recommendation.
func (b *Bot) updateProfile(ctx context.Context, message *tgbotapi.Message, change func(*models.UserProfile)) {
	profile, err := b.profile(ctx, message.From.ID)
	if err != nil {
		b.fail(message, "Sorry, I couldn't load your profile.", err)
		return
	}
	change(profile)
	profile.ChatID = message.Chat.ID
	if err := b.storage.SaveProfile(ctx, profile); err != nil {
		b.fail(message, "Sorry, I couldn't save your profile.", err)
		return
	}

	if err := b.manager.RefreshAll(ctx, profile.UserID); err != nil {
		b.logger.Warn("Some recommendations were not refreshed", zap.Int64("user_id", profile.UserID), zap.Error(err))
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Saved. Timezone %s, working hours %s.", profile.Timezone, profile.WorkHours))
}

func (b *Bot) handleCustomer(ctx context.Context, message *tgbotapi.Message, args string) {
	parts := splitArgs(args)
	if len(parts) < 2 || parts[0] == "" {
		b.sendErrorMessage(message.Chat.ID, "Usage: /customer <name> | <Area/City> | [country code]")
		return
	}
	name, tz := parts[0], parts[1]
	if _, err := scheduling.LoadLocation(tz); err != nil {
		b.sendErrorMessage(message.Chat.ID, "Unknown timezone. Use an IANA name such as Asia/Tokyo.")
		return
	}
	country := ""
	if len(parts) > 2 {
		country = strings.ToUpper(parts[2])
	}

	customer, err := b.findCustomer(ctx, message.From.ID, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		customer = &models.Customer{UserID: message.From.ID, Name: name}
	case err != nil:
		b.fail(message, "Sorry, I couldn't load your customers.", err)
		return
	}
	customer.Timezone = tz
	customer.CountryCode = country

	if err := b.storage.SaveCustomer(ctx, customer); err != nil {
		b.fail(message, "Sorry, I couldn't save the customer.", err)
		return
	}
	if _, err := b.manager.Create(ctx, message.From.ID, customer.ID, ""); err != nil {
		b.fail(message, "Sorry, I couldn't track the customer.", err)
		return
	}

	reply := fmt.Sprintf("Saved %s (%s).", customer.Name, customer.Timezone)
	if country != "" && !holiday.IsSupported(country) {
		reply += fmt.Sprintf(" Holiday data is not available for %s, only weekends will be skipped.", country)
	}
	b.sendMessage(message.Chat.ID, reply)
	b.refreshAndShow(ctx, message, customer)
}

func (b *Bot) handleNotes(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, value, ok := b.customerWithValue(ctx, message, args, "/notes <name> | <text>")
	if !ok {
		return
	}
	customer.Notes = value
	if err := b.storage.SaveCustomer(ctx, customer); err != nil {
		b.fail(message, "Sorry, I couldn't save the notes.", err)
		return
	}
	b.sendMessage(message.Chat.ID, "Notes saved.")
	b.refreshAndShow(ctx, message, customer)
}

func (b *Bot) handlePreferredHours(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, value, ok := b.customerWithValue(ctx, message, args, "/prefhours <name> | <start-end or none>")
	if !ok {
		return
	}
	if strings.EqualFold(value, "none") {
		customer.PreferredHours = nil
	} else {
		hours, err := parseHourWindow(value)
		if err != nil {
			b.sendErrorMessage(message.Chat.ID, "Invalid hours: "+err.Error())
			return
		}
		customer.PreferredHours = &hours
	}
	if err := b.storage.SaveCustomer(ctx, customer); err != nil {
		b.fail(message, "Sorry, I couldn't save the customer.", err)
		return
	}
	b.refreshAndShow(ctx, message, customer)
}

func (b *Bot) handleIntent(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, value, ok := b.customerWithValue(ctx, message, args, "/intent <name> | <text>")
	if !ok {
		return
	}
	if _, err := b.manager.Create(ctx, message.From.ID, customer.ID, value); err != nil {
		b.fail(message, "Sorry, I couldn't save the intent.", err)
		return
	}
	b.sendMessage(message.Chat.ID, "Intent saved.")
}

// handleSchedule answers with the quick estimate first and follows up with
// the full recommendation once holidays and notes are taken into account.
func (b *Bot) handleSchedule(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, ok := b.customerArg(ctx, message, args, "/schedule <name>")
	if !ok {
		return
	}
	if _, err := b.manager.Get(ctx, message.From.ID, customer.ID); errors.Is(err, storage.ErrNotFound) {
		if _, err := b.manager.Create(ctx, message.From.ID, customer.ID, ""); err != nil {
			b.fail(message, "Sorry, I couldn't track the customer.", err)
			return
		}
	}

	item, err := b.manager.Get(ctx, message.From.ID, customer.ID)
	if err == nil && item.IsTimeConfirmed {
		b.sendMarkdown(message.Chat.ID, formatItem(customer, item))
		return
	}

	senderTZ := b.senderTimezone(ctx, message.From.ID)
	if quick, err := b.manager.Quick(ctx, message.From.ID, customer.ID); err == nil {
		b.sendMarkdown(message.Chat.ID, formatRecommendation("Quick estimate for "+customer.Name, customer, senderTZ, quick))
	} else {
		b.logger.Warn("Quick recommendation failed", zap.String("customer_id", customer.ID), zap.Error(err))
	}
	b.refreshAndShow(ctx, message, customer)
}

func (b *Bot) refreshAndShow(ctx context.Context, message *tgbotapi.Message, customer *models.Customer) {
	item, err := b.manager.Refresh(ctx, message.From.ID, customer.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		b.fail(message, "Sorry, I couldn't compute a contact time.", err)
		return
	}
	if item.IsTimeConfirmed || item.Recommendation == nil {
		b.sendMarkdown(message.Chat.ID, formatItem(customer, item))
		return
	}
	b.sendMarkdown(message.Chat.ID, formatRecommendation("Best time to contact "+customer.Name, customer,
		b.senderTimezone(ctx, message.From.ID), item.Recommendation))
}

func (b *Bot) handleConfirm(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, custom, ok := b.customerWithTime(ctx, message, args, "/confirm <name> | [YYYY-MM-DD HH:MM]")
	if !ok {
		return
	}
	item, err := b.manager.Confirm(ctx, message.From.ID, customer.ID, custom)
	if errors.Is(err, focus.ErrNothingToConfirm) {
		b.sendErrorMessage(message.Chat.ID, "Nothing to confirm yet. Use /schedule first or give a time.")
		return
	}
	if err != nil {
		b.fail(message, "Sorry, I couldn't confirm the time.", err)
		return
	}
	b.sendMarkdown(message.Chat.ID, "✅ "+formatItem(customer, item))
}

func (b *Bot) handleUnconfirm(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, ok := b.customerArg(ctx, message, args, "/unconfirm <name>")
	if !ok {
		return
	}
	if _, err := b.manager.Unconfirm(ctx, message.From.ID, customer.ID); err != nil {
		b.fail(message, "Sorry, I couldn't release the time.", err)
		return
	}
	b.refreshAndShow(ctx, message, customer)
}

func (b *Bot) handleRemind(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, at, ok := b.customerWithTime(ctx, message, args, "/remind <name> | [YYYY-MM-DD HH:MM]")
	if !ok {
		return
	}
	item, err := b.manager.ArmReminder(ctx, message.From.ID, customer.ID, at, nil)
	if errors.Is(err, focus.ErrNoReminderTarget) {
		b.sendErrorMessage(message.Chat.ID, "No time to remind you about. Use /schedule first or give a time.")
		return
	}
	if err != nil {
		b.fail(message, "Sorry, I couldn't set the reminder.", err)
		return
	}
	if item.ReminderState == models.ReminderArmed {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Reminder set for %s.",
			formatInstant(*item.ReminderAt, b.senderTimezone(ctx, message.From.ID))))
	}
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, ok := b.customerArg(ctx, message, args, "/cancel <name>")
	if !ok {
		return
	}
	if _, err := b.manager.CancelReminder(ctx, message.From.ID, customer.ID); err != nil {
		b.fail(message, "Sorry, I couldn't cancel the reminder.", err)
		return
	}
	b.sendMessage(message.Chat.ID, "Reminder cancelled.")
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message, args string) {
	customer, ok := b.customerArg(ctx, message, args, "/delete <name>")
	if !ok {
		return
	}
	if err := b.manager.Delete(ctx, message.From.ID, customer.ID); err != nil {
		b.fail(message, "Sorry, I couldn't delete the schedule.", err)
		return
	}
	if err := b.storage.DeleteCustomer(ctx, message.From.ID, customer.ID); err != nil {
		b.fail(message, "Sorry, I couldn't delete the customer.", err)
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Deleted %s.", customer.Name))
}

func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message) {
	customers, err := b.storage.ListCustomers(ctx, message.From.ID)
	if err != nil {
		b.fail(message, "Sorry, I couldn't load your customers.", err)
		return
	}
	if len(customers) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any customers yet.")
		return
	}

	response := "*Your customers:*\n"
	for _, c := range customers {
		item, err := b.manager.Get(ctx, message.From.ID, c.ID)
		if err != nil {
			item = nil
		}
		response += formatItem(c, item) + "\n"
	}
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleHoliday(ctx context.Context, message *tgbotapi.Message, args string) {
	parts := splitArgs(args)
	if len(parts) == 0 || parts[0] == "" {
		b.sendErrorMessage(message.Chat.ID, "Usage: /holiday <country> | [YYYY-MM-DD]")
		return
	}
	if b.holidays == nil {
		b.sendErrorMessage(message.Chat.ID, "Holiday lookups are disabled.")
		return
	}
	date := time.Now().Format(scheduling.DateFormat)
	if len(parts) > 1 && parts[1] != "" {
		date = parts[1]
	}

	status, err := b.holidays.Status(ctx, parts[0], date)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Couldn't check that date: "+err.Error())
		return
	}

	var reply string
	switch {
	case !status.Supported:
		reply = fmt.Sprintf("No holiday data for %s.", strings.ToUpper(parts[0]))
	case status.IsHoliday:
		reply = fmt.Sprintf("%s is a public holiday: %s.", status.Date, status.HolidayName)
	case status.IsWeekend:
		reply = fmt.Sprintf("%s is a weekend.", status.Date)
	default:
		reply = fmt.Sprintf("%s is a working day.", status.Date)
	}
	b.sendMessage(message.Chat.ID, reply)
}

func (b *Bot) findCustomer(ctx context.Context, userID int64, name string) (*models.Customer, error) {
	customers, err := b.storage.ListCustomers(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (b *Bot) customerArg(ctx context.Context, message *tgbotapi.Message, args, usage string) (*models.Customer, bool) {
	parts := splitArgs(args)
	if len(parts) == 0 || parts[0] == "" {
		b.sendErrorMessage(message.Chat.ID, "Usage: "+usage)
		return nil, false
	}
	customer, err := b.findCustomer(ctx, message.From.ID, parts[0])
	if errors.Is(err, storage.ErrNotFound) {
		b.sendErrorMessage(message.Chat.ID, fmt.Sprintf("No customer named %q. Add one with /customer.", parts[0]))
		return nil, false
	}
	if err != nil {
		b.fail(message, "Sorry, I couldn't load your customers.", err)
		return nil, false
	}
	return customer, true
}

func (b *Bot) customerWithValue(ctx context.Context, message *tgbotapi.Message, args, usage string) (*models.Customer, string, bool) {
	parts := splitArgs(args)
	if len(parts) < 2 {
		b.sendErrorMessage(message.Chat.ID, "Usage: "+usage)
		return nil, "", false
	}
	customer, ok := b.customerArg(ctx, message, parts[0], usage)
	if !ok {
		return nil, "", false
	}
	return customer, strings.Join(parts[1:], " | "), true
}

// customerWithTime reads an optional wall-clock time in the customer's timezone.
func (b *Bot) customerWithTime(ctx context.Context, message *tgbotapi.Message, args, usage string) (*models.Customer, *time.Time, bool) {
	parts := splitArgs(args)
	customer, ok := b.customerArg(ctx, message, args, usage)
	if !ok {
		return nil, nil, false
	}
	if len(parts) < 2 || parts[1] == "" {
		return customer, nil, true
	}

	loc, err := scheduling.LoadLocation(customer.Timezone)
	if err != nil {
		b.fail(message, "The customer's timezone is invalid.", err)
		return nil, nil, false
	}
	t, err := parseLocalDateTime(parts[1], loc)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Invalid time, "+err.Error()+".")
		return nil, nil, false
	}
	return customer, &t, true
}

func (b *Bot) senderTimezone(ctx context.Context, userID int64) string {
	profile, err := b.profile(ctx, userID)
	if err != nil || profile.Timezone == "" {
		return b.defaults.Timezone
	}
	return profile.Timezone
}

func (b *Bot) fail(message *tgbotapi.Message, text string, err error) {
	b.logger.Error(text,
		zap.Error(err),
		zap.Int64("user_id", message.From.ID),
		zap.String("command", message.Command()))
	b.sendErrorMessage(message.Chat.ID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
