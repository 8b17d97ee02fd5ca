package extractor

import (
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoder is the tiktoken encoding used to measure units.
const DefaultEncoder = "o200k_base"

// TokenCounter returns the number of tokens in s.
type TokenCounter func(s string) int

// TiktokenCounter counts tokens with the named tiktoken encoding.
func TiktokenCounter(encoder string) (TokenCounter, error) {
	if encoder == "" {
		encoder = DefaultEncoder
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// Unit is a run of whole sentences extracted in one model call. Start and
// End index the sentences of the source text, End exclusive.
type Unit struct {
	Index int
	Start int
	End   int
	Text  string
}

// SplitUnits groups the sentences of text into units of at most maxTokens
// tokens. A single sentence longer than maxTokens becomes its own unit.
func SplitUnits(text string, maxTokens int, count TokenCounter) []Unit {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var units []Unit
	start := 0
	for i := 1; i <= len(sentences); i++ {
		if i < len(sentences) && count(strings.Join(sentences[start:i+1], " ")) <= maxTokens {
			continue
		}
		units = append(units, Unit{
			Index: len(units),
			Start: start,
			End:   i,
			Text:  strings.Join(sentences[start:i], " "),
		})
		start = i
	}
	return units
}

// titles are abbreviations common in biographies that end with a period
// but never end a sentence.
var titles = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {}, "sr": {}, "jr": {},
	"prof": {}, "rev": {}, "gen": {}, "col": {}, "capt": {}, "lt": {}, "sgt": {},
	"hon": {}, "fr": {}, "mt": {},
}

// splitIntoSentences splits text into sentences. Blank lines end a sentence,
// single line breaks inside a paragraph are folded into spaces.
func splitIntoSentences(text string) []string {
	var sentences []string
	for paragraph := range strings.SplitSeq(text, "\n\n") {
		joined := strings.Join(strings.Fields(paragraph), " ")
		if joined == "" {
			continue
		}
		sentences = append(sentences, splitParagraph(joined)...)
	}
	return sentences
}

func splitParagraph(p string) []string {
	runes := []rune(p)
	var out []string
	begin := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && !endsSentence(runes, i) {
			continue
		}

		j := i + 1
		for j < len(runes) && strings.ContainsRune(".!?\"')]}", runes[j]) {
			j++
		}
		if s := strings.TrimSpace(string(runes[begin:j])); s != "" {
			out = append(out, s)
		}
		begin = j
		i = j - 1
	}

	if s := strings.TrimSpace(string(runes[begin:])); s != "" {
		out = append(out, s)
	}
	return out
}

// endsSentence reports whether the period at i closes a sentence. Numbered
// list markers of up to two digits, decimals, initials and titles do not.
func endsSentence(runes []rune, i int) bool {
	if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !strings.ContainsRune(".\"')]}", runes[i+1]) {
		return false
	}

	w := i
	for w > 0 && (unicode.IsLetter(runes[w-1]) || unicode.IsDigit(runes[w-1])) {
		w--
	}
	word := string(runes[w:i])

	if word != "" && len(word) <= 2 && isDigits(word) && i+1 < len(runes) {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper(runes[w]) {
		return false
	}
	_, isTitle := titles[strings.ToLower(word)]
	return !isTitle
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
