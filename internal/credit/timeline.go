package credit

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// TimestampLayout is the layout of the bracketed prefix on status lines.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultLabelLength is the default cap for ExtractLatestStatusLabel.
const DefaultLabelLength = 60

var (
	statusLine   = regexp.MustCompile(`\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\][^\n\r]*`)
	statusPrefix = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\]\s*`)
)

// TimelineEntry is one bracketed line of a status log.
type TimelineEntry struct {
	Timestamp string
	Label     string
}

// ExtractLatestStatusLabel returns the text of the last timestamped line,
// capped at maxLength runes including the trailing ellipsis, so a cut label
// keeps maxLength-1 runes of text. Text without
// any timestamped line is returned whole, trimmed. maxLength <= 0 disables
// the cap.
func ExtractLatestStatusLabel(status string, maxLength int) string {
	text := strings.TrimSpace(status)
	if text == "" {
		return ""
	}
	label := text
	if lines := statusLine.FindAllString(text, -1); len(lines) > 0 {
		label = strings.TrimSpace(statusPrefix.ReplaceAllString(lines[len(lines)-1], ""))
	}
	return truncate(label, maxLength)
}

func truncate(s string, maxLength int) string {
	runes := []rune(s)
	if maxLength <= 0 || len(runes) <= maxLength {
		return s
	}
	if maxLength == 1 {
		return "…"
	}
	return string(runes[:maxLength-1]) + "…"
}

// ParseStatusTimeline returns every timestamped line in order, leaving out
// system-generated reminder entries.
func ParseStatusTimeline(status string) []TimelineEntry {
	var out []TimelineEntry
	for _, line := range statusLine.FindAllString(status, -1) {
		m := statusPrefix.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.TrimSpace(line[len(m[0]):])
		lower := strings.ToLower(label)
		if strings.HasPrefix(lower, "reminder completed") || strings.HasPrefix(lower, "reminder snoozed") {
			continue
		}
		out = append(out, TimelineEntry{Timestamp: m[1], Label: label})
	}
	return out
}

// FormatStatusLine renders "[YYYY-MM-DD HH:MM:SS] [AUTHOR] note" with the
// timestamp taken in ts's location. An empty author omits the tag.
func FormatStatusLine(ts time.Time, author, note string) string {
	note = strings.TrimSpace(note)
	if author == "" {
		return fmt.Sprintf("[%s] %s", ts.Format(TimestampLayout), note)
	}
	return fmt.Sprintf("[%s] [%s] %s", ts.Format(TimestampLayout), author, note)
}

// AppendStatusLine appends line to an existing status log without touching
// prior text.
func AppendStatusLine(existing, line string) string {
	prev := strings.TrimRight(existing, "\r\n")
	if strings.TrimSpace(prev) == "" {
		return line
	}
	return prev + "\n" + line
}

// AuthorTag resolves the bracketed author for a status line. The alias map
// is keyed by lower-cased email local part; otherwise the local part is
// upper-cased with non-alphanumerics removed.
func AuthorTag(email string, aliases map[string]string) string {
	local := strings.ToLower(strings.TrimSpace(email))
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if local == "" {
		return "USER"
	}
	if alias, ok := aliases[local]; ok && strings.TrimSpace(alias) != "" {
		return strings.TrimSpace(alias)
	}
	tag := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return -1
	}, local)
	if tag == "" {
		return "USER"
	}
	return tag
}
