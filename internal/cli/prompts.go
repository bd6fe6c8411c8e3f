package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // replaced in tests
var (
	promptPasswordFn = promptPassword
	promptConfirmFn  = promptConfirm
	promptInput      io.Reader = os.Stdin
)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(syscall.Stdin)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptConfirm asks a yes/no question on stderr. Anything but y or yes,
// including end of input, is a no.
func promptConfirm(question string) bool {
	_, _ = fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	line, err := bufio.NewReader(promptInput).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// approveFn is the wallet's approval hook. With --yes every request is
// approved; otherwise signing requests are shown and confirmed.
func approveFn(_ context.Context, req wallet.ApprovalRequest) bool {
	if assumeYes {
		return true
	}
	return promptConfirmFn(describeApproval(req))
}

func describeApproval(req wallet.ApprovalRequest) string {
	if req.Tx == nil {
		return fmt.Sprintf("Allow %s?", req.Method)
	}
	method := "contract call"
	if data := req.Tx.Data(); len(data) >= 4 {
		abi := contracts.ABI()
		if m, err := abi.MethodById(data[:4]); err == nil {
			method = m.Name
		}
	}
	to := "contract creation"
	if req.Tx.To() != nil {
		to = req.Tx.To().Hex()
	}
	price := req.Tx.GasFeeCap()
	return fmt.Sprintf("Sign %s to %s from %s (gas limit %d, max %s)?",
		method, to, req.Account.Hex(), req.Tx.Gas(), eth.FormatGasPrice(price))
}
