package ops

import (
	"log/slog"

	"github.com/go-rod/rod/lib/launcher"
)

// BrowserOpener opens deep links in the system's default browser, which in
// turn hands wa.me links to the messaging app. Whether anything opened is not
// reported.
type BrowserOpener struct {
	Log *slog.Logger

	// open is swapped in tests
	open func(url string)
}

// NewBrowserOpener returns an opener backed by the default browser.
func NewBrowserOpener(log *slog.Logger) *BrowserOpener {
	if log == nil {
		log = slog.Default()
	}
	return &BrowserOpener{Log: log, open: launcher.Open}
}

// Open launches url and returns immediately.
func (o *BrowserOpener) Open(url string) {
	o.Log.Debug("opening link", "url", url)
	o.open(url)
}
