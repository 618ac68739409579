package capsule

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hpungsan/timecapsule/internal/errors"
)

// DeepLinkBase is the WhatsApp click-to-chat endpoint.
const DeepLinkBase = "https://wa.me/"

// CreatedDateLayout is how the creation date reads inside the dispatch text.
const CreatedDateLayout = "January 2, 2006"

// DispatchText renders the fixed message template handed to the messaging app.
func DispatchText(c *Capsule) string {
	return fmt.Sprintf("🎁 Time Capsule for %s!\n\n\"%s\"\n\nThis message was written on %s.\n\n💌",
		c.RecipientName, c.Message, c.CreatedAt.Format(CreatedDateLayout))
}

// DeepLink builds https://wa.me/<digits>?text=<encoded template> for c.
func DeepLink(c *Capsule) (string, error) {
	digits := NormalizeContact(c.RecipientContact)
	if digits == "" {
		return "", errors.NewInvalidRequest(fmt.Sprintf("contact %q contains no digits", c.RecipientContact))
	}
	return DeepLinkBase + digits + "?text=" + EncodeURIComponent(DispatchText(c)), nil
}

// EncodeURIComponent escapes s the way browsers' encodeURIComponent does:
// spaces become %20 rather than '+', and !'()*~ are left alone.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*", "%7E", "~")
	return r.Replace(escaped)
}
