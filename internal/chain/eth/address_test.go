package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Test vectors from EIP-55: https://eips.ethereum.org/EIPS/eip-55
func TestToChecksumAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
		{"0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb", "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"},
		{"0xD1220A0CF47C7B9BE7A2E6BA89F429762E7B9ADB", "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"},
		{"0x52908400098527886E0F7030069857D2E4169EE7", "0x52908400098527886E0F7030069857D2E4169EE7"},
		{"not an address", "not an address"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ToChecksumAddress(tc.input))
		})
	}
}

func TestToChecksumAddressMatchesGeth(t *testing.T) {
	t.Parallel()
	lower := "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	assert.Equal(t, common.HexToAddress(lower).Hex(), ToChecksumAddress(lower))
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "checksummed", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", want: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{name: "lower case", input: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", want: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{name: "upper case", input: "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", want: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{name: "surrounding space", input: "  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed\n", want: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{name: "bad checksum", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", wantErr: true},
		{name: "missing prefix", input: "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantErr: true},
		{name: "too short", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA", wantErr: true},
		{name: "non hex", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeG", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAddress(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, reviewerr.ErrValidationFailed)
				assert.Equal(t, "address", reviewerr.Detail(err, "field"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Hex())
		})
	}
}

func TestParseAddressReportsExpectedChecksum(t *testing.T) {
	t.Parallel()
	_, err := ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD")
	require.Error(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", reviewerr.Detail(err, "expected"))
}
