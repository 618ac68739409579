package capsule

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/timecapsule/internal/errors"
)

func dueCapsule() *Capsule {
	return &Capsule{
		ID:               "01TEST",
		RecipientName:    "Alex",
		RecipientContact: "+1 (234) 567-8900",
		Message:          "Happy Birthday!",
		ScheduledDate:    "2025-06-01",
		ScheduledTime:    "09:30",
		CreatedAt:        time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC),
		Due:              true,
	}
}

func TestDispatchText(t *testing.T) {
	text := DispatchText(dueCapsule())

	require.True(t, strings.HasPrefix(text, "🎁"), "header should start with an emoji: %q", text)
	require.Contains(t, text, "Alex")
	require.Contains(t, text, `"Happy Birthday!"`)
	require.Contains(t, text, "This message was written on May 20, 2025.")
	require.True(t, strings.HasSuffix(text, "💌"))
}

func TestDeepLink(t *testing.T) {
	link, err := DeepLink(dueCapsule())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(link, "https://wa.me/12345678900?text="), link)
	require.Contains(t, link, "Happy%20Birthday!")
	require.NotContains(t, link, "+", "spaces must be %20, not '+'")

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "wa.me", u.Host)
	require.Equal(t, "/12345678900", u.Path)

	text := u.Query().Get("text")
	require.Equal(t, DispatchText(dueCapsule()), text, "text must round-trip")
	require.Contains(t, text, "Alex")
	require.Contains(t, text, "Happy Birthday!")
}

func TestDeepLink_ReservedCharactersInMessage(t *testing.T) {
	c := dueCapsule()
	c.Message = "a&b=c?d#e\nline two + more"

	link, err := DeepLink(c)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, []string{"text"}, keys(u.Query()), "reserved characters must not split the query")
	require.Contains(t, u.Query().Get("text"), "a&b=c?d#e\nline two + more")
}

func TestDeepLink_NoDigits(t *testing.T) {
	c := dueCapsule()
	c.RecipientContact = "n/a"

	_, err := DeepLink(c)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Happy Birthday!", "Happy%20Birthday!"},
		{"a+b", "a%2Bb"},
		{"(it's) *fine* ~", "(it's)%20*fine*%20~"},
		{"é", "%C3%A9"},
		{"a/b?c", "a%2Fb%3Fc"},
	}

	for _, tc := range tests {
		if got := EncodeURIComponent(tc.in); got != tc.want {
			t.Errorf("EncodeURIComponent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func keys(v url.Values) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	return out
}
