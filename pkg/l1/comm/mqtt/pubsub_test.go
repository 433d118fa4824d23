package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		topic, pattern string
		match          bool
	}{
		{"psxpad/a/meta", "+/+/meta", true},
		{"psxpad/a/msg", "+/+/meta", false},
		{"psxpad/a", "+/+/meta", false},
		{"psxpad/a/msg", "#", true},
		{"psxpad/a/msg", "psxpad/#", true},
		{"psxpad/a/msg/x", "psxpad/+/msg", false},
		{"psxpad/a/msg", "psxpad/a/msg", true},
	}
	for _, c := range cases {
		require.Equal(t, c.match, MatchTopic(c.topic, c.pattern), "%s ~ %s", c.topic, c.pattern)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://user:pw@broker:1884/psx/?client-id=pad0")
	require.NoError(t, err)
	require.Equal(t, "psx/", prefix)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp://broker:1884", opts.Servers[0].String())
	require.Equal(t, "user", opts.Username)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, "pad0", opts.ClientID)
}

func TestSubTable(t *testing.T) {
	var table subTable
	var got []string
	mk := func(topic, tag string) *Subscription {
		return &Subscription{topic: topic, handler: func(string, []byte) { got = append(got, tag) }}
	}
	a, b, w := mk("x/y", "a"), mk("x/y", "b"), mk("x/+", "w")
	require.True(t, table.add(a))
	require.False(t, table.add(b))
	require.True(t, table.add(w))
	for _, h := range table.handlers("x/y") {
		h("x/y", nil)
	}
	require.ElementsMatch(t, []string{"a", "b", "w"}, got)
	require.Len(t, table.filters(), 2)

	require.False(t, table.remove(a))
	require.True(t, table.remove(b))
	require.True(t, table.remove(w))
	require.Empty(t, table.handlers("x/y"))
}
