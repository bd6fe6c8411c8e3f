package eth

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// IsValidAddress checks the 0x-prefixed 40 hex character form. The
// checksum is not validated.
func IsValidAddress(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}

// ToChecksumAddress converts an address to EIP-55 form. Invalid input is
// returned unchanged.
func ToChecksumAddress(address string) string {
	if !IsValidAddress(address) {
		return address
	}
	addr := strings.ToLower(address[2:])

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(addr))
	hash := hex.EncodeToString(hasher.Sum(nil))

	var b strings.Builder
	b.Grow(42)
	b.WriteString("0x")
	for i := range len(addr) {
		c := addr[i]
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ParseAddress reads a reviewer or account address typed by a user. All
// lower or all upper case input is accepted as is; mixed case must carry a
// correct EIP-55 checksum.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !IsValidAddress(address) {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "%q is not an address", address)
		return common.Address{}, reviewerr.WithDetails(err, map[string]string{"field": "address"})
	}

	digits := address[2:]
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if expected := ToChecksumAddress(address); expected != address {
			err := reviewerr.WithDetails(
				reviewerr.Newf(reviewerr.ErrValidationFailed, "address %s has an invalid checksum", address),
				map[string]string{"field": "address", "expected": expected},
			)
			return common.Address{}, reviewerr.WithSuggestion(err, "check for a mistyped character or paste the address again")
		}
	}
	return common.HexToAddress(address), nil
}
