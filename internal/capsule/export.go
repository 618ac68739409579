package capsule

import (
	"fmt"
	"strings"
	"time"
)

// ExportContentType is the MIME type of an exported capsule document.
const ExportContentType = "text/plain;charset=utf-8"

// ExportExt is the extension of exported capsule documents.
const ExportExt = ".txt"

// ExportOptions tweak the exported document.
type ExportOptions struct {
	// EscapeNewlines writes CR/LF inside values as the two characters `\n`
	// so the document keeps exactly one line per field.
	EscapeNewlines bool
}

// newlineEscaper maps CRLF, CR and LF to a literal backslash-n.
var newlineEscaper = strings.NewReplacer("\r\n", `\n`, "\r", `\n`, "\n", `\n`)

// ExportDocument renders the five fields as "Label: value" lines in the
// order Name, Phone, Message, Date, Time. There is no trailing newline.
// Values are written as given unless opts.EscapeNewlines is set.
func ExportDocument(f Fields, opts ExportOptions) string {
	fields := f.ordered()
	lines := make([]string, 0, len(fields))
	for _, kv := range fields {
		value := kv.value
		if opts.EscapeNewlines {
			value = newlineEscaper.Replace(value)
		}
		lines = append(lines, kv.label+": "+value)
	}
	return strings.Join(lines, "\n")
}

// ExportFilename returns TimeCapsule_<name>_<epochMillis>.txt.
func ExportFilename(name string, now time.Time) string {
	return fmt.Sprintf("TimeCapsule_%s_%d%s", SanitizeFilename(name), now.UnixMilli(), ExportExt)
}

// FieldsOf recovers the form fields a capsule was created from.
func FieldsOf(c *Capsule) Fields {
	return Fields{
		Name:    c.RecipientName,
		Contact: c.RecipientContact,
		Message: c.Message,
		Date:    c.ScheduledDate,
		Time:    c.ScheduledTime,
	}
}
