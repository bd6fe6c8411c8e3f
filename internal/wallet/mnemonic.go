package wallet

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/reviewchain/reviewchain/internal/secret"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

// ethCoinType is the SLIP-44 coin type shared by EVM chains.
const ethCoinType = 60

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)

	// bulletListRegex matches bullet prefixes like "- " "* " "• "
	bulletListRegex = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// NormalizeMnemonicInput lowercases a pasted phrase and strips list
// numbering, bullets, commas and extra whitespace.
func NormalizeMnemonicInput(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, word list membership and checksum.
// Misspelled words are reported with their closest BIP39 word.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonicInput(mnemonic)
	words := strings.Fields(normalized)
	if len(words) != 12 && len(words) != 24 {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "mnemonic must be 12 or 24 words, got %d", len(words))
		return reviewerr.WithDetails(err, map[string]string{"field": "mnemonic"})
	}

	if typos := DetectTypos(normalized); len(typos) > 0 {
		err := reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "mnemonic contains unknown words"),
			map[string]string{"field": "mnemonic"},
		)
		return reviewerr.WithSuggestion(err, FormatTypoSuggestions(typos))
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "mnemonic checksum is invalid")
		return reviewerr.WithDetails(err, map[string]string{"field": "mnemonic"})
	}
	return nil
}

// MnemonicToSeed converts a BIP39 mnemonic phrase to a 64-byte seed.
// The caller should zero the seed after use.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonicInput(mnemonic), passphrase), nil
}

// DerivationPath returns the BIP44 path of an EVM account.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/%d'/0'/0/%d", ethCoinType, index)
}

// DeriveKey derives the private key at DerivationPath(index). The result
// is always 32 bytes.
func DeriveKey(seed []byte, index uint32) (*secret.Bytes, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + ethCoinType,
		bip32.FirstHardenedChild,
		0,
		index,
	}
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", DerivationPath(index), err)
		}
	}

	padded := make([]byte, 32)
	copy(padded[32-len(key.Key):], key.Key)
	defer secret.Zero(padded)
	return secret.New(padded), nil
}

// TypoInfo contains information about a detected typo and its suggestion.
type TypoInfo struct {
	// Index is the word position in the mnemonic (0-based).
	Index int
	Word  string
	// Suggestion is the closest BIP39 word, or empty if none found.
	Suggestion string
}

// SuggestWord finds the closest BIP39 word to the input using Levenshtein
// distance, or "" when nothing is within MaxTypoDistance.
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// DetectTypos returns the words of mnemonic that are not BIP39 words.
func DetectTypos(mnemonic string) []TypoInfo {
	words := strings.Fields(NormalizeMnemonicInput(mnemonic))
	var typos []TypoInfo
	for i, word := range words {
		if _, ok := bip39.GetWordIndex(word); ok {
			continue
		}
		typos = append(typos, TypoInfo{
			Index:      i,
			Word:       word,
			Suggestion: SuggestWord(word),
		})
	}
	return typos
}

// FormatTypoSuggestions formats typo information into human-readable suggestions.
func FormatTypoSuggestions(typos []TypoInfo) string {
	lines := make([]string, 0, len(typos))
	for _, typo := range typos {
		if typo.Suggestion != "" {
			lines = append(lines, fmt.Sprintf("word %d: '%s' - did you mean '%s'?", typo.Index+1, typo.Word, typo.Suggestion))
			continue
		}
		lines = append(lines, fmt.Sprintf("word %d: '%s' is not a valid BIP39 word", typo.Index+1, typo.Word))
	}
	return strings.Join(lines, "\n")
}
