package cli_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agentmatch/internal/cli"
)

func run(t *testing.T, dbFile string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("HOUSE_SEED", "42")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--sqlite", dbFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsList(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "am.db"), "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "karma-recalc")
	assert.Contains(t, out, "house-activity")
}

func TestSeedThenRunKarma(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "am.db")

	out, err := run(t, dbFile, "seed", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Aria_Nova")
	assert.Contains(t, out, "tindai_")

	out, err = run(t, dbFile, "jobs", "run", "karma-recalc")
	require.NoError(t, err)
	assert.Contains(t, out, `"updated": 10`)

	out, err = run(t, dbFile, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_agents": 10`)
}

func TestJobsRunUnknown(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "am.db"), "jobs", "run", "nap-time")
	assert.ErrorContains(t, err, "unknown job")
}
