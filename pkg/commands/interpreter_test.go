package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/aobridge/pkg/langpref"
	"github.com/tinyland-inc/aobridge/pkg/lookup"
)

type stubPrices struct {
	rate float64
	err  error
	got  string
}

func (s *stubPrices) Rate(_ context.Context, symbol string) (float64, error) {
	s.got = symbol
	return s.rate, s.err
}

type stubWeather struct {
	cond lookup.Conditions
	err  error
}

func (s *stubWeather) Current(context.Context) (lookup.Conditions, error) {
	return s.cond, s.err
}

func newTestInterpreter(prices PriceSource, weather WeatherSource) (*Interpreter, *langpref.Store) {
	store := langpref.NewStore("")
	return NewInterpreter(store, weather, prices, WithPicker(func(int) int { return 0 })), store
}

func TestInterpret_NotACommand(t *testing.T) {
	interp, _ := newTestInterpreter(nil, nil)

	assert.Nil(t, interp.Interpret("hello there", "en", "u1"))
	assert.Nil(t, interp.Interpret("", "en", "u1"))
	assert.Nil(t, interp.Interpret("!jokes", "en", "u1"))
	assert.Nil(t, interp.Interpret("say !joke", "en", "u1"))
}

func TestInterpret_JokeDefaultsToEnglish(t *testing.T) {
	interp, _ := newTestInterpreter(nil, nil)

	reply := interp.Interpret("!joke", "", "userA")
	require.NotNil(t, reply)
	assert.False(t, reply.IsAsync())
	assert.Empty(t, reply.SetLang)
	assert.Contains(t, Jokes(langpref.English), reply.Text[2:len(reply.Text)-2])
	assert.Equal(t, "**"+Jokes(langpref.English)[0]+"**", reply.Text)
}

func TestInterpret_QuoteUsesStoredLanguageOverEventLanguage(t *testing.T) {
	interp, store := newTestInterpreter(nil, nil)
	require.NoError(t, store.Set("userT", langpref.Turkish))

	reply := interp.Interpret("!quote", langpref.English, "userT")
	require.NotNil(t, reply)
	assert.Equal(t, "**"+Quotes(langpref.Turkish)[0]+"**", reply.Text)
}

func TestInterpret_JokeUsesEventLanguageWhenNoPreference(t *testing.T) {
	interp, _ := newTestInterpreter(nil, nil)

	reply := interp.Interpret("!joke", langpref.Turkish, "nobody")
	require.NotNil(t, reply)
	assert.Equal(t, "**"+Jokes(langpref.Turkish)[0]+"**", reply.Text)
}

func TestInterpret_SetLangSequence(t *testing.T) {
	interp, store := newTestInterpreter(nil, nil)

	reply := interp.Interpret("!setlang en", "", "u")
	require.NotNil(t, reply)
	assert.Equal(t, "Language set to English", reply.Text)
	assert.Equal(t, "en", reply.SetLang)

	reply = interp.Interpret("!setlang tr", "", "u")
	assert.Equal(t, "Language set to Turkish", reply.Text)
	assert.Equal(t, "tr", reply.SetLang)

	code, _ := store.Get("u")
	assert.Equal(t, "tr", code)
}

func TestInterpret_SetLangInvalidKeepsPrior(t *testing.T) {
	interp, store := newTestInterpreter(nil, nil)
	require.NoError(t, store.Set("u", "tr"))

	for _, text := range []string{"!setlang de", "!setlang"} {
		reply := interp.Interpret(text, "", "u")
		require.NotNil(t, reply)
		assert.Equal(t, "Invalid language. Use !setlang en or !setlang tr", reply.Text)
		assert.Empty(t, reply.SetLang)
	}

	code, _ := store.Get("u")
	assert.Equal(t, "tr", code)
}

func TestInterpret_PriceUsage(t *testing.T) {
	interp, _ := newTestInterpreter(&stubPrices{}, nil)

	reply := interp.Interpret("!price", "", "u")
	require.NotNil(t, reply)
	assert.False(t, reply.IsAsync())
	assert.Equal(t, "**Please specify a coin (e.g., !price btc).**", reply.Text)
}

func TestInterpret_PriceSuccess(t *testing.T) {
	prices := &stubPrices{rate: 64250.129}
	interp, _ := newTestInterpreter(prices, nil)

	reply := interp.Interpret("!price btc", "", "u")
	require.NotNil(t, reply)
	require.True(t, reply.IsAsync())
	assert.Equal(t, "**The current price of BTC is $64250.13.**", reply.Resolve(context.Background()))
	assert.Equal(t, "btc", prices.got)
}

func TestInterpret_PriceFailure(t *testing.T) {
	interp, _ := newTestInterpreter(&stubPrices{err: errors.New("boom")}, nil)

	reply := interp.Interpret("!price xyz", "", "u")
	require.NotNil(t, reply)
	assert.Contains(t, reply.Resolve(context.Background()), "Failed to fetch xyz price.")
}

func TestInterpret_Weather(t *testing.T) {
	weather := &stubWeather{cond: lookup.Conditions{
		City: "Antarctica", Temp: -10, FeelsLike: -15, Description: "clear sky", WindSpeed: 3,
	}}
	interp, _ := newTestInterpreter(nil, weather)

	reply := interp.Interpret("!weather", "", "u")
	require.NotNil(t, reply)
	assert.Equal(t,
		"**The current temperature in Antarctica is -10°C. Feels like -15°C. Clear sky. Wind speed: 3 m/s.**",
		reply.Resolve(context.Background()))

	weather.err = errors.New("down")
	assert.Equal(t, "**Failed to fetch weather data.**", reply.Resolve(context.Background()))
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("!price eth"))
	assert.True(t, IsCommand("  !weather"))
	assert.False(t, IsCommand("hello"))
	assert.False(t, IsCommand(""))
}
