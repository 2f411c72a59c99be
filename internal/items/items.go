package items

import "sort"

// Category is the aggregator feed array a symbol is published in.
type Category string

const (
	CategoryGold     Category = "gold"
	CategoryCurrency Category = "currency"
	CategoryCrypto   Category = "cryptocurrency"
)

// Categories lists the aggregator categories in display order.
var Categories = []Category{CategoryGold, CategoryCurrency, CategoryCrypto}

// Item maps a stable symbol key to the aggregator's native symbol code.
type Item struct {
	Key      string
	Native   string
	Category Category
	Emoji    string
}

var All = []Item{
	// -------- GOLD / COINS --------
	{Key: "gold_18k", Native: "IR_GOLD_18K", Category: CategoryGold, Emoji: "🥇"},
	{Key: "gold_24k", Native: "IR_GOLD_24K", Category: CategoryGold, Emoji: "🥇"},
	{Key: "gold_melted", Native: "IR_GOLD_MELTED", Category: CategoryGold, Emoji: "🥇"},
	{Key: "xauusd", Native: "XAUUSD", Category: CategoryGold, Emoji: "🌍"},
	{Key: "coin_1g", Native: "IR_COIN_1G", Category: CategoryGold, Emoji: "🪙"},
	{Key: "coin_quarter", Native: "IR_COIN_QUARTER", Category: CategoryGold, Emoji: "🪙"},
	{Key: "coin_half", Native: "IR_COIN_HALF", Category: CategoryGold, Emoji: "🪙"},
	{Key: "coin_emami", Native: "IR_COIN_EMAMI", Category: CategoryGold, Emoji: "🪙"},
	{Key: "coin_bahar", Native: "IR_COIN_BAHAR", Category: CategoryGold, Emoji: "🪙"},

	// -------- CURRENCY --------
	{Key: "usdt_irt", Native: "USDT_IRT", Category: CategoryCurrency, Emoji: "💵"},
	{Key: "usd", Native: "USD", Category: CategoryCurrency, Emoji: "💵"},
	{Key: "eur", Native: "EUR", Category: CategoryCurrency, Emoji: "💶"},
	{Key: "aed", Native: "AED", Category: CategoryCurrency, Emoji: "💱"},
	{Key: "gbp", Native: "GBP", Category: CategoryCurrency, Emoji: "💷"},

	// -------- CRYPTO (USD) --------
	{Key: "btc", Native: "BTC", Category: CategoryCrypto, Emoji: "₿"},
	{Key: "eth", Native: "ETH", Category: CategoryCrypto, Emoji: "💠"},
	{Key: "trx", Native: "TRX", Category: CategoryCrypto, Emoji: "🔺"},
	{Key: "usdt", Native: "USDT", Category: CategoryCrypto, Emoji: "💲"},
}

// important is hand-curated per category and is not user-editable.
var important = map[Category]map[string]bool{
	CategoryGold: {
		"IR_GOLD_18K":   true,
		"IR_GOLD_24K":   true,
		"IR_COIN_EMAMI": true,
		"IR_COIN_1G":    true,
		"XAUUSD":        true,
	},
	CategoryCurrency: {
		"USD":      true,
		"USDT_IRT": true,
		"EUR":      true,
		"AED":      true,
	},
	CategoryCrypto: {
		"BTC":  true,
		"ETH":  true,
		"TRX":  true,
		"USDT": true,
	},
}

var (
	byKey  map[string]Item
	sorted []string
)

func init() {
	byKey = map[string]Item{}
	for _, it := range All {
		byKey[it.Key] = it
		sorted = append(sorted, it.Key)
	}
	sort.Strings(sorted)
}

func ByKey(key string) (Item, bool) {
	it, ok := byKey[key]
	return it, ok
}

// Known reports whether key is part of the symbol universe.
func Known(key string) bool {
	_, ok := byKey[key]
	return ok
}

// Keys returns every symbol key in lexical order.
func Keys() []string {
	out := make([]string, len(sorted))
	copy(out, sorted)
	return out
}

// Defaults returns the custom selection a chat starts with.
func Defaults() []string {
	return []string{"coin_emami", "coin_1g", "usd", "usdt_irt", "xauusd", "btc", "eth", "trx", "usdt"}
}

// IsImportant reports whether native is in the curated set of cat.
func IsImportant(cat Category, native string) bool {
	return important[cat][native]
}

// NativeSet resolves symbol keys to the set of native codes they reach.
// Unknown keys are ignored.
func NativeSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		if it, ok := byKey[k]; ok {
			out[it.Native] = true
		}
	}
	return out
}
