package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	got := Split(`
-- comment; with semicolon
CREATE TABLE a (
    id INT
);

DROP TABLE b;
SELECT 1`)

	require.Len(t, got, 3)
	assert.True(t, strings.HasPrefix(got[0], "CREATE TABLE a ("))
	assert.True(t, strings.HasSuffix(got[0], ")"))
	assert.Equal(t, "DROP TABLE b", got[1])
	assert.Equal(t, "SELECT 1", got[2])
}

func TestLoad(t *testing.T) {
	mysql, err := Load("mysql")
	require.NoError(t, err)
	require.NotEmpty(t, mysql)
	assert.Equal(t, "mysql/001_init.sql", mysql[0].Name)
	assert.Len(t, mysql[0].Statements, 6)

	ch, err := Load("clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Len(t, ch[0].Statements, 3)
	assert.Contains(t, ch[0].Statements[2], "ReplacingMergeTree")
}
