package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/config"
	"github.com/Armin-kho/gheymat-bot/internal/prefs"
	"github.com/Armin-kho/gheymat-bot/internal/render"
	"github.com/Armin-kho/gheymat-bot/internal/report"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type PreferenceStore interface {
	Get(ctx context.Context, chatID int64) prefs.Preference
	SetMode(ctx context.Context, chatID int64, mode string) error
	Toggle(ctx context.Context, chatID int64, key string) ([]string, error)
}

type Snapshotter interface {
	Snapshot(ctx context.Context, chatID int64) report.Snapshot
}

type Options struct {
	Labels config.Labels
	// MaxConcurrent bounds how many updates are handled at once.
	MaxConcurrent int
	// UpdateTimeout bounds the handling of one update.
	UpdateTimeout time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

type App struct {
	api     Sender
	prefs   PreferenceStore
	reports Snapshotter
	opts    Options
	log     zerolog.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	// pages holds the open customize page per chat; it is not persisted.
	pageMu sync.Mutex
	pages  map[int64]int
}

func New(api Sender, p PreferenceStore, reports Snapshotter, opts Options) *App {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &App{
		api:     api,
		prefs:   p,
		reports: reports,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "bot").Logger(),
		sem:     make(chan struct{}, opts.MaxConcurrent),
		pages:   map[int64]int{},
	}
}

// RegisterCommands publishes the command list shown in Telegram clients.
func (a *App) RegisterCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "gheymat", Description: "Show prices + menu"},
		tgbotapi.BotCommand{Command: "start", Description: "Start"},
	)
	_, err := a.api.Request(cfg)
	return err
}

// Run handles updates until ctx is done or the channel closes. Each update
// runs in its own goroutine; Run waits for them before returning.
func (a *App) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case a.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			a.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer a.wg.Done()
				defer func() { <-a.sem }()
				a.handleUpdate(context.WithoutCancel(ctx), upd)
			}(upd)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.UpdateTimeout)
	defer cancel()

	log := a.log.With().Str("req_id", uuid.NewString()).Int("update_id", upd.UpdateID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("update handler panicked")
		}
	}()

	start := a.opts.Now()
	switch {
	case upd.Message != nil:
		a.handleMessage(ctx, log, upd.Message)
	case upd.CallbackQuery != nil:
		a.handleCallback(ctx, log, upd.CallbackQuery)
	default:
		return
	}
	log.Debug().Dur("took", a.opts.Now().Sub(start)).Msg("update handled")
}

func (a *App) handleMessage(ctx context.Context, log zerolog.Logger, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	log = log.With().Int64("chat_id", chatID).Logger()

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			a.sendWelcome(log, chatID)
		case "gheymat":
			a.sendPrices(ctx, log, chatID)
		}
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case a.opts.Labels.Price, a.opts.Labels.Modes, a.opts.Labels.Refresh:
		a.sendPrices(ctx, log, chatID)
	case a.opts.Labels.Customize:
		a.setPage(chatID, 0)
		p := a.prefs.Get(ctx, chatID)
		out := tgbotapi.NewMessage(chatID, "Customize your list:")
		out.ReplyMarkup = CustomMenu(p.Custom, 0)
		a.send(log, out)
	}
}

func (a *App) handleCallback(ctx context.Context, log zerolog.Logger, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		a.answer(log, q.ID, "")
		return
	}
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	log = log.With().Int64("chat_id", chatID).Str("data", q.Data).Logger()

	action, arg := parseCallback(q.Data)
	switch action {
	case cbMode:
		if err := a.prefs.SetMode(ctx, chatID, arg); err != nil {
			a.answerError(log, q.ID, err)
			return
		}
		a.answer(log, q.ID, "Mode set to "+arg)
		a.editPrices(ctx, log, chatID, msgID)

	case cbCustom:
		switch arg {
		case argOpen:
			a.answer(log, q.ID, "Customize")
			a.setPage(chatID, 0)
			a.editMenu(log, chatID, msgID, CustomMenu(a.prefs.Get(ctx, chatID).Custom, 0))
		case argBack:
			a.answer(log, q.ID, "Back")
			a.editPrices(ctx, log, chatID, msgID)
		default:
			a.answer(log, q.ID, "")
		}

	case cbToggle:
		sel, err := a.prefs.Toggle(ctx, chatID, arg)
		if err != nil {
			a.answerError(log, q.ID, err)
			return
		}
		a.answer(log, q.ID, "Toggled "+arg)
		a.editMenu(log, chatID, msgID, CustomMenu(sel, a.page(chatID)))

	case cbPage:
		n, err := strconv.Atoi(arg)
		if err != nil {
			a.answer(log, q.ID, "")
			return
		}
		n = clampPage(n)
		a.setPage(chatID, n)
		a.answer(log, q.ID, "")
		a.editMenu(log, chatID, msgID, CustomMenu(a.prefs.Get(ctx, chatID).Custom, n))

	case cbAction:
		if arg != argRefresh {
			a.answer(log, q.ID, "")
			return
		}
		a.answer(log, q.ID, "Refreshing…")
		a.editPrices(ctx, log, chatID, msgID)

	default:
		a.answer(log, q.ID, "")
	}
}

func (a *App) sendWelcome(log zerolog.Logger, chatID int64) {
	text := "👋 " + a.opts.Labels.Welcome + "\n\n" +
		"• Tap /gheymat or use the bottom bar.\n" +
		"• Switch modes (All/Important/Custom) and tailor your list."
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = ReplyKeyboard(a.opts.Labels)
	a.send(log, out)
}

// prices builds the rendered report for chatID.
func (a *App) prices(ctx context.Context, chatID int64) (string, prefs.Mode) {
	snap := a.reports.Snapshot(ctx, chatID)
	return render.Markdown(snap, a.opts.Now()), snap.Mode
}

func (a *App) sendPrices(ctx context.Context, log zerolog.Logger, chatID int64) {
	text, mode := a.prices(ctx, chatID)
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	out.DisableWebPagePreview = true
	out.ReplyMarkup = ModeMenu(mode)
	if _, err := a.api.Send(out); err != nil {
		// fall back to plain text if Telegram rejects the markup
		log.Warn().Err(err).Msg("send prices as markdown")
		out.ParseMode = ""
		a.send(log, out)
	}
}

func (a *App) editPrices(ctx context.Context, log zerolog.Logger, chatID int64, msgID int) {
	text, mode := a.prices(ctx, chatID)
	kb := ModeMenu(mode)
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = &kb
	if _, err := a.api.Request(edit); err != nil && !notModified(err) {
		log.Warn().Err(err).Msg("edit prices")
	}
}

func (a *App) editMenu(log zerolog.Logger, chatID int64, msgID int, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, kb)
	if _, err := a.api.Request(edit); err != nil && !notModified(err) {
		log.Warn().Err(err).Msg("edit menu")
	}
}

func (a *App) send(log zerolog.Logger, c tgbotapi.Chattable) {
	if _, err := a.api.Send(c); err != nil {
		log.Warn().Err(err).Msg("send message")
	}
}

func (a *App) answer(log zerolog.Logger, queryID, text string) {
	if _, err := a.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		log.Debug().Err(err).Msg("answer callback")
	}
}

func (a *App) answerError(log zerolog.Logger, queryID string, err error) {
	switch {
	case errors.Is(err, prefs.ErrInvalidMode):
		a.answer(log, queryID, "Unknown mode")
	case errors.Is(err, prefs.ErrUnknownSymbol):
		a.answer(log, queryID, "Unknown symbol")
	default:
		log.Error().Err(err).Msg("update preference")
		a.answer(log, queryID, "Could not save, please try again")
	}
}

func (a *App) page(chatID int64) int {
	a.pageMu.Lock()
	defer a.pageMu.Unlock()
	return a.pages[chatID]
}

func (a *App) setPage(chatID int64, page int) {
	a.pageMu.Lock()
	a.pages[chatID] = page
	a.pageMu.Unlock()
}

func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
