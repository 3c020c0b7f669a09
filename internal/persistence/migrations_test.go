package persistence

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsHaveUpAndDown(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		body, err := fs.ReadFile(migrationFS, name)
		require.NoError(t, err)
		up := strings.Index(string(body), "-- +goose Up")
		down := strings.Index(string(body), "-- +goose Down")
		assert.True(t, up >= 0 && down > up, name)
	}
}

func TestAccountEmailUniqueIgnoresCase(t *testing.T) {
	body, err := fs.ReadFile(migrationFS, "migrations/00001_accounts.sql")
	require.NoError(t, err)
	sql := string(body)

	assert.Regexp(t, regexp.MustCompile(`(?i)CREATE UNIQUE INDEX[^;]+ON accounts \(lower\(email\)\)`), sql)
	// A plain column constraint would let Alice@x.com and alice@x.com coexist.
	assert.NotRegexp(t, regexp.MustCompile(`(?i)email VARCHAR\(\d+\) NOT NULL UNIQUE`), sql)
}
