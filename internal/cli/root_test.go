package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// errTestRandom is used for testing non-review error handling.
var errTestRandom = reviewerr.New("TEST_ERROR", "some random error")

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "all fields populated",
			info: BuildInfo{Version: "v1.2.3", Commit: "abc1234", Date: "2026-01-15"},
			want: "v1.2.3 (commit: abc1234, built: 2026-01-15)",
		},
		{
			name: "all fields empty",
			info: BuildInfo{},
			want: "dev (commit: unknown, built: unknown)",
		},
		{
			name: "only version empty",
			info: BuildInfo{Commit: "def5678", Date: "2026-02-20"},
			want: "dev (commit: def5678, built: 2026-02-20)",
		},
		{
			name: "only commit empty",
			info: BuildInfo{Version: "v2.0.0", Date: "2026-03-25"},
			want: "v2.0.0 (commit: unknown, built: 2026-03-25)",
		},
		{
			name: "only date empty",
			info: BuildInfo{Version: "v3.0.0", Commit: "ghi9012"},
			want: "v3.0.0 (commit: ghi9012, built: unknown)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, formatVersion(tc.info))
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, reviewerr.ExitSuccess},
		{"validation", reviewerr.ErrValidationFailed, reviewerr.ExitInput},
		{"wallet", reviewerr.ErrWalletNotConnected, reviewerr.ExitWallet},
		{"funds", reviewerr.ErrInsufficientGasFunds, reviewerr.ExitFunds},
		{"cancelled", reviewerr.ErrCancelled, reviewerr.ExitCancelled},
		{"not found", reviewerr.ErrNotFound, reviewerr.ExitNotFound},
		{"wrapped", reviewerr.Wrap(reviewerr.ErrUserRejected, "connecting"), reviewerr.ExitCancelled},
		{"foreign", errTestRandom, reviewerr.ExitGeneral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestDefaultsUnder(t *testing.T) {
	t.Parallel()

	home := filepath.Join("srv", "reviewchain")
	c := defaultsUnder(home)

	assert.Equal(t, home, c.Home)
	assert.Equal(t, filepath.Join(home, "evidence"), c.Evidence.Dir)
	assert.Equal(t, filepath.Join(home, "reviewchain.db"), c.Store.DSN)
	assert.Equal(t, filepath.Join(home, "reviewchain.log"), c.Logging.File)
	require.NoError(t, c.Validate())
}

func TestVersionCommand(t *testing.T) {
	orig := buildInfo
	t.Cleanup(func() { buildInfo = orig })
	SetBuildInfo(BuildInfo{Version: "v0.4.0", Commit: "cafe123", Date: "2026-10-01"})

	stdout, _, err := executeCommand(t, "version", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "reviewchain v0.4.0 (commit: cafe123, built: 2026-10-01)\n", stdout)

	stdout, _, err = executeCommand(t, "version", "-o", "json")
	require.NoError(t, err)
	var got BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "v0.4.0", got.Version)
	assert.Equal(t, "cafe123", got.Commit)
}

func TestExecute_ErrorWrittenToStderr(t *testing.T) {
	withFakeApp(t, func() *App { return &App{Reviews: &fakeReviews{}} })

	stdout, stderr, err := executeCommand(t, "vote", "up", "abc", "-o", "json")
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, reviewerr.ExitInput, ExitCode(err))

	var envelope struct {
		Error struct {
			Code     string            `json:"code"`
			Details  map[string]string `json:"details"`
			ExitCode int               `json:"exit_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &envelope))
	assert.Equal(t, "VALIDATION_FAILED", envelope.Error.Code)
	assert.Equal(t, "review_id", envelope.Error.Details["field"])
	assert.Equal(t, reviewerr.ExitInput, envelope.Error.ExitCode)
}

func TestExecute_TextError(t *testing.T) {
	_, stderr, err := executeCommand(t, "networks", "show", "nowhere", "-o", "text")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error [UNKNOWN_NETWORK]")
}
