package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFormat_Daily(t *testing.T) {
	tf, err := parseTimeFormat("yyyy/MM/dd")
	require.NoError(t, err)

	at := time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2024/01/15", tf.Format(at))
	assert.Equal(t, "", tf.Prefix())

	parsed, err := tf.Parse("2024/01/15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), parsed)
}

func TestTimeFormat_Hourly(t *testing.T) {
	tf, err := parseTimeFormat("yyyy/MM/dd/HH")
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024/06/01/07", tf.Format(at))
}

func TestTimeFormat_LiteralPrefix(t *testing.T) {
	tf, err := parseTimeFormat("'myprefix'/yyyy/MM/dd")
	require.NoError(t, err)

	assert.Equal(t, "myprefix/", tf.Prefix())

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	dir := tf.Format(at)
	assert.Equal(t, "myprefix/2024/01/15", dir)

	parsed, err := tf.Parse(dir)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), parsed)

	// Directories under a different prefix do not parse.
	_, err = tf.Parse("other/2024/01/15")
	assert.Error(t, err)
}

func TestTimeFormat_FormatsInUTC(t *testing.T) {
	tf, err := parseTimeFormat("yyyy/MM/dd")
	require.NoError(t, err)

	// 23:00 in UTC-3 is the next day in UTC.
	loc := time.FixedZone("UTC-3", -3*60*60)
	at := time.Date(2024, 1, 15, 23, 0, 0, 0, loc)
	assert.Equal(t, "2024/01/16", tf.Format(at))
}

func TestTimeFormat_Invalid(t *testing.T) {
	for _, pattern := range []string{
		"",
		"'unterminated/yyyy",
		"'literal'yyyy/MM/dd", // missing slash after literal
		"yyyy/QQ/dd",          // unknown token
	} {
		_, err := parseTimeFormat(pattern)
		assert.Error(t, err, "pattern %q must be rejected", pattern)
	}
}
