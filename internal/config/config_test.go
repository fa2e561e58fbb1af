package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRange(t *testing.T) {
	start, end, err := parsePortRange("8000-8010")
	require.NoError(t, err)
	assert.Equal(t, 8000, start)
	assert.Equal(t, 8010, end)
}

func TestParsePortRangeTrimsWhitespace(t *testing.T) {
	start, end, err := parsePortRange(" 8000 - 8010 ")
	require.NoError(t, err)
	assert.Equal(t, 8000, start)
	assert.Equal(t, 8010, end)
}

func TestParsePortRangeRejectsMalformed(t *testing.T) {
	_, _, err := parsePortRange("8000")
	assert.Error(t, err)

	_, _, err = parsePortRange("abc-def")
	assert.Error(t, err)
}

func TestParsePortRangeRejectsEndBeforeStart(t *testing.T) {
	_, _, err := parsePortRange("8010-8000")
	assert.Error(t, err)
}

func TestParseIntList(t *testing.T) {
	out, err := parseIntList("10,20,40")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 40}, out)
}

func TestParseIntListSkipsBlankEntriesAndTrims(t *testing.T) {
	out, err := parseIntList(" 10, ,20 ")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, out)
}

func TestParseIntListRejectsNonNumeric(t *testing.T) {
	_, err := parseIntList("10,abc")
	assert.Error(t, err)
}

func TestParseStringList(t *testing.T) {
	out := parseStringList("llama3:8b, llama3 ,mistral")
	assert.Equal(t, []string{"llama3:8b", "llama3", "mistral"}, out)
}

func TestParseStringListEmptyString(t *testing.T) {
	out := parseStringList("")
	assert.Empty(t, out)
}

func TestGetPanicsWithoutLoad(t *testing.T) {
	globalConfig = nil
	assert.Panics(t, func() { Get() })
}
