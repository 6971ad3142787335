// Package translate detects Spanish questions and rewrites them into English
// with phrase and word dictionaries, so the model can answer in the language
// it handles best.
package translate

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Language is a detected input language.
type Language string

const (
	English Language = "English"
	Spanish Language = "Spanish"
	Other   Language = "Other"
)

// phrases are matched before single words, longest first.
var phrases = func() [][2]string {
	p := [][2]string{
		{"cuál es la capital de", "what is the capital of"},
		{"cuál es el planeta más grande", "what is the largest planet"},
		{"quién escribió", "who wrote"},
		{"quién pintó", "who painted"},
		{"cuántos continentes hay", "how many continents are there"},
		{"cuántos continentes", "how many continents"},
		{"cuál es la", "what is the"},
		{"cuál es el", "what is the"},
		{"cuál es", "what is"},
		{"qué es", "what is"},
		{"quién es", "who is"},
		{"cómo se llama", "what is the name of"},
		{"dónde está", "where is"},
		{"dónde queda", "where is"},
		{"en qué año", "in what year"},
		{"por qué", "why"},
		{"don quijote", "Don Quixote"},
		{"mona lisa", "Mona Lisa"},
		{"estados unidos", "United States"},
		{"reino unido", "United Kingdom"},
	}
	sort.SliceStable(p, func(i, j int) bool { return len(p[i][0]) > len(p[j][0]) })
	return p
}()

var words = map[string]string{
	// question words
	"qué": "what", "cuál": "which", "quién": "who", "cómo": "how",
	"dónde": "where", "cuándo": "when", "cuánto": "how much",
	"cuántos": "how many", "cuántas": "how many", "por": "for",

	// verbs
	"es": "is", "son": "are", "está": "is", "están": "are", "hay": "are there",
	"tiene": "has", "tienen": "have", "fue": "was", "fueron": "were",
	"escribió": "wrote", "pintó": "painted", "descubrió": "discovered",
	"inventó": "invented", "fundó": "founded", "nació": "was born",
	"murió": "died", "ganó": "won",

	// articles
	"el": "the", "la": "the", "los": "the", "las": "the", "un": "a", "una": "a",
	"unos": "some", "unas": "some", "del": "of the", "al": "to the",

	// prepositions
	"de": "of", "en": "in", "con": "with", "para": "for", "sobre": "about",
	"entre": "between", "hacia": "towards", "desde": "from", "hasta": "until",

	// adjectives
	"más": "most", "grande": "large", "pequeño": "small", "primer": "first",
	"primero": "first", "primera": "first", "segundo": "second",
	"última": "last", "último": "last",

	// nouns
	"capital": "capital", "país": "country", "países": "countries",
	"planeta": "planet", "planetas": "planets", "continente": "continent",
	"continentes": "continents", "mundo": "world", "año": "year", "años": "years",
	"persona": "person", "personas": "people", "libro": "book", "obra": "work",
	"pintura": "painting", "autor": "author", "escritor": "writer",
	"presidente": "president", "rey": "king", "reina": "queen",

	// countries
	"francia": "France", "españa": "Spain", "alemania": "Germany",
	"italia": "Italy", "japón": "Japan", "china": "China", "brasil": "Brazil",
	"méxico": "Mexico", "argentina": "Argentina", "chile": "Chile",
	"perú": "Peru", "colombia": "Colombia", "rusia": "Russia", "india": "India",
}

var (
	spanishMarkers = []string{"¿", "¡", "ñ", "á", "é", "í", "ó", "ú"}
	spanishWords   = map[string]bool{
		"qué": true, "cuál": true, "cómo": true, "dónde": true, "quién": true, "cuánto": true,
		"que": true, "cual": true, "como": true, "donde": true, "quien": true, "cuanto": true,
		"es": true, "son": true, "está": true, "están": true, "hay": true, "tiene": true,
		"del": true, "las": true, "los": true, "una": true, "uno": true,
	}
)

func notAlnum(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }

// DetectLanguage guesses whether text is Spanish from accents, inverted
// punctuation and common function words. Anything else is English.
func DetectLanguage(text string) Language {
	lower := strings.ToLower(norm.NFC.String(text))

	for _, m := range spanishMarkers {
		if strings.Contains(lower, m) {
			return Spanish
		}
	}

	fields := strings.Fields(lower)
	count := 0
	for _, w := range fields {
		if spanishWords[strings.TrimFunc(w, notAlnum)] {
			count++
		}
	}
	if count >= 2 || (len(fields) <= 5 && count >= 1) {
		return Spanish
	}
	return English
}

// TranslateToEnglish rewrites a Spanish question word by word. Words missing
// from the dictionary are kept, which covers proper nouns and text that is
// already English.
func TranslateToEnglish(text string) string {
	text = norm.NFC.String(text)
	clean := strings.NewReplacer("¿", "", "¡", "").Replace(text)
	result := strings.ToLower(clean)

	for _, p := range phrases {
		result = strings.ReplaceAll(result, p[0], p[1])
	}

	fields := strings.Fields(result)
	for i, w := range fields {
		core := strings.TrimFunc(w, notAlnum)
		en, ok := words[core]
		if !ok || core == "" {
			continue
		}
		at := strings.Index(w, core)
		fields[i] = w[:at] + en + w[at+len(core):]
	}
	out := strings.Join(fields, " ")

	if out != "" {
		r := []rune(out)
		r[0] = unicode.ToUpper(r[0])
		out = string(r)
	}
	if strings.Contains(text, "?") && !strings.HasSuffix(out, "?") {
		out += "?"
	}
	return out
}

// MultilingualPrompt asks the model to answer in lang.
func MultilingualPrompt(question string, lang Language) string {
	if lang == Spanish {
		return question + "\nResponde brevemente en español."
	}
	return question
}
