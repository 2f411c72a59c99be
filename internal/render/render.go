package render

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/gheymat-bot/internal/report"
	"github.com/Armin-kho/gheymat-bot/internal/sources"
	"github.com/Armin-kho/gheymat-bot/internal/utils"
)

const (
	exchangeTitle   = "💹 *Bitpin IRT Markets*"
	exchangeFooter  = "\n— source: Bitpin API"
	aggregatorTitle = "🏅 *Gold & Currency (BRS)*"

	// EmptyText is sent when neither feed produced anything.
	EmptyText = "⚠️ No market data is available right now. Please try again in a minute."
)

var sectionTitles = map[report.Kind]string{
	report.KindGold:     "*Gold / Coins*",
	report.KindCurrency: "*Currency*",
	report.KindCrypto:   "*Crypto (USD)*",
}

// Markdown renders snap as a Telegram Markdown message: the exchange block
// first, then the aggregator block, separated by a blank line.
func Markdown(snap report.Snapshot, now time.Time) string {
	if snap.Empty() {
		return EmptyText
	}
	stamp := Stamp(now)

	var blocks []string
	if sec, ok := snap.Section(report.KindExchange); ok {
		blocks = append(blocks, exchangeBlock(sec, stamp))
	}
	if b := aggregatorBlock(snap, stamp); b != "" {
		blocks = append(blocks, b)
	}
	return strings.Join(blocks, "\n\n")
}

// Stamp is the timestamp line shown under each block title.
func Stamp(now time.Time) string {
	return utils.UTCStamp(now) + " | " + utils.ToPersianDigits(utils.JalaliDateTime(now))
}

func exchangeBlock(sec report.Section, stamp string) string {
	lines := make([]string, 0, len(sec.Rows)+2)
	lines = append(lines, fmt.Sprintf("%s  \n_%s_\n", exchangeTitle, stamp))
	for _, r := range sec.Rows {
		lines = append(lines, fmt.Sprintf(
			"*%s* (`%s`)\n  • Price: `%s` IRT  %s\n  • 24h Min/Max: `%s` / `%s`\n",
			escape(r.Name), r.Code, r.Price, r.Change, r.Min, r.Max,
		))
	}
	lines = append(lines, exchangeFooter)
	return strings.Join(lines, "\n")
}

func aggregatorBlock(snap report.Snapshot, stamp string) string {
	if n, ok := snap.Notice(sources.ProviderBRS); ok {
		return aggregatorTitle + "\n" + n.Text
	}

	var body []string
	for _, k := range []report.Kind{report.KindGold, report.KindCurrency, report.KindCrypto} {
		sec, ok := snap.Section(k)
		if !ok {
			continue
		}
		body = append(body, "\n"+sectionTitles[k])
		for _, r := range sec.Rows {
			body = append(body, row(r))
		}
	}
	if len(body) == 0 {
		return ""
	}

	lines := make([]string, 0, len(body)+2)
	lines = append(lines, fmt.Sprintf("%s  \n_%s_", aggregatorTitle, stamp))
	lines = append(lines, body...)
	lines = append(lines, fmt.Sprintf("\n— source: BRS API (mode: %s)", snap.Mode))
	return strings.Join(lines, "\n")
}

func row(r report.Row) string {
	return fmt.Sprintf("• %s: `%s` %s  %s", escape(r.Name), r.Price, r.Unit, r.Change)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
