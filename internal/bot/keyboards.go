package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/gheymat-bot/internal/config"
	"github.com/Armin-kho/gheymat-bot/internal/items"
	"github.com/Armin-kho/gheymat-bot/internal/prefs"
)

// PageSize is the number of symbols per customize page.
const PageSize = 8

// Callback data is "<action>|<arg>".
const (
	cbMode   = "mode"
	cbCustom = "custom"
	cbToggle = "toggle"
	cbPage   = "page"
	cbAction = "action"

	argOpen    = "open"
	argBack    = "back"
	argRefresh = "refresh"
)

func callback(action, arg string) string { return action + "|" + arg }

func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, "|")
	return action, arg
}

// ReplyKeyboard is the persistent bottom bar.
func ReplyKeyboard(l config.Labels) tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(l.Price)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(l.Modes), tgbotapi.NewKeyboardButton(l.Customize)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(l.Refresh)),
	)
}

// ModeMenu is attached under every price message; current is marked.
func ModeMenu(current prefs.Mode) tgbotapi.InlineKeyboardMarkup {
	btn := func(label string, m prefs.Mode) tgbotapi.InlineKeyboardButton {
		if m == current {
			label = "• " + label
		}
		return tgbotapi.NewInlineKeyboardButtonData(label, callback(cbMode, string(m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("All", prefs.ModeAll),
			btn("Important", prefs.ModeImportant),
			btn("Custom", prefs.ModeCustom),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Customize…", callback(cbCustom, argOpen))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Refresh", callback(cbAction, argRefresh))),
	)
}

// lastPage is the highest valid page index.
func lastPage() int {
	n := len(items.Keys())
	if n == 0 {
		return 0
	}
	return (n - 1) / PageSize
}

func clampPage(page int) int {
	if page < 0 {
		return 0
	}
	if lp := lastPage(); page > lp {
		return lp
	}
	return page
}

// CustomMenu lists every symbol key, sorted, one per row with its selection
// mark, followed by Prev/Next and Back.
func CustomMenu(selected []string, page int) tgbotapi.InlineKeyboardMarkup {
	keys := items.Keys()
	sel := make(map[string]bool, len(selected))
	for _, k := range selected {
		sel[k] = true
	}

	page = clampPage(page)
	start := page * PageSize
	end := start + PageSize
	if end > len(keys) {
		end = len(keys)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, k := range keys[start:end] {
		mark := "⬜️"
		if sel[k] {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", mark, k), callback(cbToggle, k)),
		))
	}

	nav := []tgbotapi.InlineKeyboardButton{}
	if start > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Prev", callback(cbPage, strconv.Itoa(page-1))))
	}
	if end < len(keys) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next", callback(cbPage, strconv.Itoa(page+1))))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back", callback(cbCustom, argBack)),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
