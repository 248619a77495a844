// Package crontab arms and disarms one-shot checker triggers in the user's crontab.
//
// Every managed line ends with a marker comment naming the secret it belongs to:
//
//	05 14 01 06 * /usr/local/bin/secretcron check db-creds # secretcron:db-creds
//
// Lines are matched on that marker, never on substrings of the command, so
// "db" and "db-backup" can never disturb each other.
package crontab

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkerPrefix starts the trailing comment that keys a line to a secret ID.
const MarkerPrefix = "# secretcron:"

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_./:@+=,-]+$`)

// Schedule is the date part of a one-shot cron line. Day of week is always "*".
type Schedule struct {
	Minute int
	Hour   int
	Day    int
	Month  time.Month
}

// ScheduleAt returns the schedule that fires at t, to the minute.
func ScheduleAt(t time.Time) Schedule {
	return Schedule{
		Minute: t.Minute(),
		Hour:   t.Hour(),
		Day:    t.Day(),
		Month:  t.Month(),
	}
}

func (s Schedule) String() string {
	return fmt.Sprintf("%02d %02d %02d %02d *", s.Minute, s.Hour, s.Day, int(s.Month))
}

// Entry is a managed crontab line.
type Entry struct {
	Schedule Schedule
	// Command is the checker executable.
	Command string
	// Args are passed to the checker before the check subcommand.
	Args     []string
	SecretID string
}

// NewEntry builds the entry that runs "<checker> [args...] check <secretID>" at t.
func NewEntry(t time.Time, checker, secretID string, args ...string) Entry {
	return Entry{
		Schedule: ScheduleAt(t),
		Command:  checker,
		Args:     args,
		SecretID: secretID,
	}
}

// Invocation is the shell command cron runs, without schedule or marker.
func (e Entry) Invocation() string {
	return invocation(e.Command, e.Args, e.SecretID)
}

// String renders the crontab line.
func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s%s", e.Schedule, e.Invocation(), MarkerPrefix, escapePercent(e.SecretID))
}

func invocation(checker string, args []string, secretID string) string {
	words := make([]string, 0, len(args)+3)
	words = append(words, shellQuote(checker))
	for _, arg := range args {
		words = append(words, shellQuote(arg))
	}
	words = append(words, "check", shellQuote(secretID))
	return strings.Join(words, " ")
}

// ParseEntry parses a managed crontab line. Lines without a marker or with a
// schedule it cannot read are rejected. The command is everything between the
// schedule and the marker, so quoted paths with spaces survive.
func ParseEntry(line string) (Entry, bool) {
	id, ok := markerID(line)
	if !ok {
		return Entry{}, false
	}

	fields, rest, ok := cutFields(line[:strings.LastIndex(line, MarkerPrefix)], 5)
	if !ok || fields[4] != "*" {
		return Entry{}, false
	}
	var nums [4]int
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return Entry{}, false
		}
		nums[i] = n
	}

	words, ok := splitShellWords(strings.ReplaceAll(rest, `\%`, "%"))
	if !ok || len(words) == 0 {
		return Entry{}, false
	}

	e := Entry{
		Schedule: Schedule{Minute: nums[0], Hour: nums[1], Day: nums[2], Month: time.Month(nums[3])},
		Command:  words[0],
		SecretID: id,
	}
	if n := len(words); n > 3 && words[n-2] == "check" {
		e.Args = words[1 : n-2]
	}
	return e, true
}

// Time returns the next instant at or after from when the entry fires.
func (e Entry) Time(from time.Time) time.Time {
	loc := from.Location()
	t := time.Date(from.Year(), e.Schedule.Month, e.Schedule.Day, e.Schedule.Hour, e.Schedule.Minute, 0, 0, loc)
	if t.Before(from.Truncate(time.Minute)) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}

// markerID extracts the secret ID from a line's trailing marker.
func markerID(line string) (string, bool) {
	idx := strings.LastIndex(line, MarkerPrefix)
	if idx < 0 {
		return "", false
	}
	id := strings.TrimSpace(line[idx+len(MarkerPrefix):])
	if id == "" {
		return "", false
	}
	return strings.ReplaceAll(id, `\%`, "%"), true
}

// Table is a crontab held in memory. Unmanaged lines are preserved verbatim.
type Table struct {
	lines []string
}

// ParseTable splits crontab -l output into lines.
func ParseTable(data []byte) *Table {
	t := &Table{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return t
	}
	t.lines = strings.Split(text, "\n")
	return t
}

// Lines returns a copy of the table's lines.
func (t *Table) Lines() []string {
	return append([]string(nil), t.lines...)
}

// Keyed returns the lines belonging to secretID. A line belongs to it if its
// marker names the ID, or, for unmarked lines, if the command after the
// five schedule fields is exactly the checker invocation (with args) for the ID.
func (t *Table) Keyed(secretID, checker string, args ...string) []string {
	var out []string
	for _, line := range t.lines {
		if t.belongs(line, secretID, checker, args) {
			out = append(out, line)
		}
	}
	return out
}

func (t *Table) belongs(line, secretID, checker string, args []string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	if id, ok := markerID(line); ok {
		return id == secretID
	}
	if checker == "" {
		return false
	}
	_, rest, ok := cutFields(trimmed, 5)
	if !ok {
		return false
	}
	return strings.Join(strings.Fields(rest), " ") == invocation(checker, args, secretID)
}

// Remove drops every line belonging to secretID and returns how many were removed.
func (t *Table) Remove(secretID, checker string, args ...string) int {
	kept := t.lines[:0]
	removed := 0
	for _, line := range t.lines {
		if t.belongs(line, secretID, checker, args) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	t.lines = kept
	return removed
}

// Append adds a line at the end of the table.
func (t *Table) Append(line string) {
	t.lines = append(t.lines, line)
}

// Managed returns every parsable managed entry.
func (t *Table) Managed() []Entry {
	var out []Entry
	for _, line := range t.lines {
		if e, ok := ParseEntry(line); ok {
			out = append(out, e)
		}
	}
	return out
}

// Bytes renders the table for installation. crontab requires a trailing newline.
func (t *Table) Bytes() []byte {
	var buf bytes.Buffer
	for _, line := range t.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// shellQuote quotes s for sh and escapes % for cron.
func shellQuote(s string) string {
	if s != "" && safeShellWord.MatchString(s) {
		return s
	}
	return escapePercent("'" + strings.ReplaceAll(s, "'", `'\''`) + "'")
}

// cutFields splits off the first n whitespace-separated fields of s and
// returns them with the trimmed remainder.
func cutFields(s string, n int) ([]string, string, bool) {
	fields := make([]string, 0, n)
	rest := strings.TrimLeft(s, " \t")
	for len(fields) < n {
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return nil, "", false
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, "", false
	}
	return fields, rest, true
}

// splitShellWords splits a command line the way sh would for the quoting
// shellQuote produces: single quotes, double quotes and backslash escapes.
func splitShellWords(s string) ([]string, bool) {
	var (
		words   []string
		word    strings.Builder
		inWord  bool
		quote   byte
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			word.WriteByte(c)
			escaped = false
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				word.WriteByte(c)
			}
		case quote == '"':
			switch c {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				word.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == '\\':
			escaped = true
			inWord = true
		case c == ' ' || c == '\t':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteByte(c)
			inWord = true
		}
	}
	if quote != 0 || escaped {
		return nil, false
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, true
}

func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", `\%`)
}
