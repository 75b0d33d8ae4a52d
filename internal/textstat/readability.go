// Package textstat computes readability statistics for English text.
package textstat

import (
	"errors"
	"strings"
	"unicode"

	"github.com/ppiankov/clausewatch/internal/assess"
)

// ErrNoWords is returned for text that contains no countable words
var ErrNoWords = errors.New("text contains no words")

const vowels = "aeiouyàáâäèéêëìíîïòóôöùúûü"

// Analyzer computes Flesch readability metrics. The zero value is ready to use.
type Analyzer struct{}

// Readability returns the reading ease, grade level and underlying counts for text
func (Analyzer) Readability(text string) (assess.Readability, error) {
	words := Words(text)
	if len(words) == 0 {
		return assess.Readability{}, ErrNoWords
	}

	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}

	sentences := CountSentences(text)
	wordsPerSentence := float64(len(words)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(words))

	return assess.Readability{
		ReadingEase: 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord,
		GradeLevel:  0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59,
		Syllables:   syllables,
		Words:       len(words),
		Sentences:   sentences,
	}, nil
}

// Words splits text into word tokens. Hyphens and apostrophes inside a token
// are kept; tokens without a letter or digit are dropped.
func Words(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-' && r != '’'
	})

	words := tokens[:0]
	for _, tok := range tokens {
		tok = strings.Trim(tok, "-'’")
		if strings.IndexFunc(tok, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			words = append(words, tok)
		}
	}
	return words
}

// CountSentences counts sentences ended by '.', '!' or '?' followed by
// whitespace or the end of text, so decimals such as "3.5" do not split.
// Text with words but no terminator is one sentence.
func CountSentences(text string) int {
	count := 0
	pending := false
	sawWord := false

	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			pending = sawWord
		case unicode.IsSpace(r):
			if pending {
				count++
				sawWord = false
				pending = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sawWord = true
			pending = false
		}
	}

	if sawWord {
		count++
	}
	if count == 0 {
		return 1
	}
	return count
}

// CountSyllables estimates syllables in an English word by counting vowel
// groups, ignoring a silent trailing e. Every word has at least one syllable.
func CountSyllables(word string) int {
	letters := make([]rune, 0, len(word))
	for _, r := range word {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToLower(r))
		}
	}
	if len(letters) <= 3 {
		return 1
	}

	n := len(letters)
	last, prev, before := letters[n-1], letters[n-2], letters[n-3]
	switch {
	case last == 'e' && !isVowel(prev) && !(prev == 'l' && !isVowel(before)):
		// time, notice; but not table
		letters = letters[:n-1]
	case prev == 'e' && last == 'd' && !isVowel(before) && !strings.ContainsRune("td", before):
		// cancelled; but not noted
		letters = letters[:n-2]
	case prev == 'e' && last == 's' && !isVowel(before) && !strings.ContainsRune("sxzcgh", before):
		// rates; but not boxes
		letters = letters[:n-2]
	}

	count := 0
	prevVowel := false
	for _, r := range letters {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	if count == 0 {
		return 1
	}
	return count
}

func isVowel(r rune) bool {
	return strings.ContainsRune(vowels, r)
}
