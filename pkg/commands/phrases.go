package commands

import "github.com/tinyland-inc/aobridge/pkg/langpref"

var jokes = map[string][]string{
	langpref.English: {
		"Why don't blockchain developers go out much? They like to stay at chain home!",
		"How do you make a small fortune in crypto? Start with a large one!",
	},
	langpref.Turkish: {
		"Blockchain geliştiricileri neden çok dışarı çıkmaz? Zincir evde kalmayı tercih ederler!",
		"Kripto para ile nasıl küçük bir servet yapılır? İlk olarak büyük bir servetle başlarsınız!",
	},
}

var quotes = map[string][]string{
	langpref.English: {
		"Blockchain is the tech. Bitcoin is merely the first mainstream manifestation of its potential. - Marc Kenigsberg",
		"Blockchain will do to the financial system what the internet did to media. - Joichi Ito",
	},
	langpref.Turkish: {
		"Blockchain, teknolojinin ta kendisidir. Bitcoin, bu potansiyelinin yalnızca ilk ana akım tezahürüdür. - Marc Kenigsberg",
		"Blockchain, finansal sisteme internetin medyaya yaptığını yapacak. - Joichi Ito",
	},
}

// Jokes returns the joke list for lang, falling back to English.
func Jokes(lang string) []string {
	if list, ok := jokes[lang]; ok {
		return list
	}
	return jokes[langpref.Default]
}

// Quotes returns the quote list for lang, falling back to English.
func Quotes(lang string) []string {
	if list, ok := quotes[lang]; ok {
		return list
	}
	return quotes[langpref.Default]
}
