// Package commands recognises the bridge's chat commands (!setlang, !joke,
// !quote, !price, !weather) and produces the reply for the chat channel.
package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/tinyland-inc/aobridge/pkg/langpref"
	"github.com/tinyland-inc/aobridge/pkg/logger"
	"github.com/tinyland-inc/aobridge/pkg/lookup"
)

const (
	SetLang = "!setlang"
	Joke    = "!joke"
	Quote   = "!quote"
	Price   = "!price"
	Weather = "!weather"
)

const (
	msgInvalidLanguage = "Invalid language. Use !setlang en or !setlang tr"
	msgPriceUsage      = "**Please specify a coin (e.g., !price btc).**"
	msgWeatherFailed   = "**Failed to fetch weather data.**"
)

// Preferences is the slice of the language store the interpreter needs.
type Preferences interface {
	Resolve(userID, fallback string) string
	Set(userID, code string) error
}

type WeatherSource interface {
	Current(ctx context.Context) (lookup.Conditions, error)
}

type PriceSource interface {
	Rate(ctx context.Context, symbol string) (float64, error)
}

// Reply is the interpreter's answer to a recognised command.
type Reply struct {
	Command string
	// Text is the reply when it is known immediately.
	Text string
	// Lookup, when set, produces the reply from an external call and should
	// be run off the event loop.
	Lookup func(ctx context.Context) string
	// SetLang is the new language after a successful !setlang; the caller
	// propagates it to the other side.
	SetLang string
}

// IsAsync reports whether the reply requires an external lookup.
func (r *Reply) IsAsync() bool { return r.Lookup != nil }

// Resolve returns the reply text, running the lookup if there is one.
func (r *Reply) Resolve(ctx context.Context) string {
	if r.Lookup != nil {
		return r.Lookup(ctx)
	}
	return r.Text
}

type Interpreter struct {
	prefs   Preferences
	weather WeatherSource
	prices  PriceSource
	pick    func(n int) int
}

type Option func(*Interpreter)

// WithPicker replaces the random index source used for jokes and quotes.
func WithPicker(pick func(n int) int) Option {
	return func(i *Interpreter) { i.pick = pick }
}

func NewInterpreter(prefs Preferences, weather WeatherSource, prices PriceSource, opts ...Option) *Interpreter {
	i := &Interpreter{
		prefs:   prefs,
		weather: weather,
		prices:  prices,
		pick:    rand.Intn,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IsCommand reports whether text starts with a recognised command token.
func IsCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case SetLang, Joke, Quote, Price, Weather:
		return true
	}
	return false
}

// Interpret returns nil when text is not a command.
func (i *Interpreter) Interpret(text, lang, userID string) *Reply {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case SetLang:
		return i.setLang(fields, userID)
	case Joke:
		resolved := i.prefs.Resolve(userID, lang)
		return &Reply{Command: Joke, Text: bold(i.choose(Jokes(resolved)))}
	case Quote:
		resolved := i.prefs.Resolve(userID, lang)
		return &Reply{Command: Quote, Text: bold(i.choose(Quotes(resolved)))}
	case Price:
		if len(fields) < 2 {
			return &Reply{Command: Price, Text: msgPriceUsage}
		}
		return &Reply{Command: Price, Lookup: i.priceLookup(fields[1])}
	case Weather:
		return &Reply{Command: Weather, Lookup: i.weatherLookup()}
	default:
		return nil
	}
}

func (i *Interpreter) setLang(fields []string, userID string) *Reply {
	code := ""
	if len(fields) > 1 {
		code = fields[1]
	}
	if !langpref.Supported(code) {
		return &Reply{Command: SetLang, Text: msgInvalidLanguage}
	}

	if err := i.prefs.Set(userID, code); err != nil {
		if errors.Is(err, langpref.ErrUnsupported) {
			return &Reply{Command: SetLang, Text: msgInvalidLanguage}
		}
		logger.ErrorCF("commands", "Failed to persist language preference", map[string]any{
			"user_id": userID,
			"lang":    code,
			"error":   err.Error(),
		})
	}
	return &Reply{
		Command: SetLang,
		Text:    "Language set to " + langpref.DisplayName(code),
		SetLang: code,
	}
}

func (i *Interpreter) priceLookup(symbol string) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		if i.prices == nil {
			return fmt.Sprintf("**Failed to fetch %s price.**", symbol)
		}
		rate, err := i.prices.Rate(ctx, symbol)
		if err != nil {
			logger.WarnCF("commands", "Price lookup failed", map[string]any{
				"symbol": symbol,
				"error":  err.Error(),
			})
			return fmt.Sprintf("**Failed to fetch %s price.**", symbol)
		}
		return fmt.Sprintf("**The current price of %s is $%.2f.**", strings.ToUpper(symbol), rate)
	}
}

func (i *Interpreter) weatherLookup() func(ctx context.Context) string {
	return func(ctx context.Context) string {
		if i.weather == nil {
			return msgWeatherFailed
		}
		cond, err := i.weather.Current(ctx)
		if err != nil {
			logger.WarnCF("commands", "Weather lookup failed", map[string]any{"error": err.Error()})
			return msgWeatherFailed
		}
		return cond.Format()
	}
}

func (i *Interpreter) choose(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[i.pick(len(list))]
}

func bold(s string) string {
	return "**" + s + "**"
}
