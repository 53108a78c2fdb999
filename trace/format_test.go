package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatter_FormatEvent(t *testing.T) {
	out := JSONFormatter{}.FormatEvent(Fields{
		{Key: "Severity", Value: "10"},
		{Key: "Type", Value: "Hello"},
	})

	assert.Equal(t, "{  \"Severity\": \"10\", \"Type\": \"Hello\" }\r\n", out)
}

func TestJSONEscape_RoundTrip(t *testing.T) {
	original := "quote:\" backslash:\\ nl:\n cr:\r ctl:\x01 high:\xfe"

	var sb strings.Builder
	escapeJSON(&sb, original)
	escaped := sb.String()

	assert.NotContains(t, escaped, "\n")
	assert.NotContains(t, escaped, "\r")
	assert.Contains(t, escaped, `\x01`)

	back, err := unescapeJSON(escaped)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestJSONUnescape_Rejects(t *testing.T) {
	for _, bad := range []string{`trailing\`, `\q`, `\x1`, `\xg1`} {
		_, err := unescapeJSON(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestXMLFormatter_FormatEvent(t *testing.T) {
	out := XMLFormatter{}.FormatEvent(Fields{
		{Key: "Type", Value: `a<b>&"c`},
	})

	assert.Equal(t, "<Event Type=\"a&lt;b&gt;&amp;&quot;c\"/>\r\n", out)
}

func TestNewFormatter_SelectsByName(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)
	assert.Equal(t, "json", f.Extension())

	f, err = NewFormatter("")
	require.NoError(t, err)
	assert.Equal(t, "xml", f.Extension())

	_, err = NewFormatter("yaml")
	assert.Error(t, err)
}
