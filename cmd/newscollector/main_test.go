package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const quietConfig = `
logging:
  development: false
  level: error
collection:
  schedule:
    enabled: false
platforms:
  google:
    enabled: false
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(quietConfig), 0o600))

	cmd := newRootCmd(nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestUserRegisterPrintsUser(t *testing.T) {
	t.Parallel()

	out, err := run(t, "user", "register", "--nickname", "reader")
	require.NoError(t, err)

	var user news.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	require.Equal(t, "reader", user.Nickname)
	require.NotEmpty(t, user.ID)
}

func TestCollectWithoutKeywordsPrintsEmptySummary(t *testing.T) {
	t.Parallel()

	out, err := run(t, "collect")
	require.NoError(t, err)

	var summary news.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Empty(t, summary.Outcomes)
}

func TestCollectSingleKeywordReportsOutcome(t *testing.T) {
	t.Parallel()

	out, err := run(t, "collect", "--keyword", "election")
	require.NoError(t, err)

	var outcome news.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	require.Equal(t, "election", outcome.Keyword)
	require.NotEqual(t, news.StatusCollected, outcome.Status)
}

func TestFeedRequiresUser(t *testing.T) {
	t.Parallel()

	_, err := run(t, "feed")
	require.ErrorContains(t, err, "--user is required")
}

func TestFeedUnknownUser(t *testing.T) {
	t.Parallel()

	_, err := run(t, "feed", "--user", "ghost")
	require.ErrorIs(t, err, news.ErrUserNotFound)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := run(t, "migrate")
	require.ErrorContains(t, err, "database.dsn")
}

func TestInvalidConfigFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collection:\n  page_size: 0\n"), 0o600))

	cmd := newRootCmd(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "collect"})
	require.ErrorContains(t, cmd.Execute(), "page_size")
}
