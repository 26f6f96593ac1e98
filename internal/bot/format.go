package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/globalsync/internal/models"
)

const displayLayout = "Mon 2006-01-02 15:04 MST"

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

// splitArgs splits "name | value | value" command arguments.
func splitArgs(args string) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseHourWindow accepts "9-18" or "09:00-18:00".
func parseHourWindow(s string) (models.HourWindow, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return models.HourWindow{}, fmt.Errorf("expected START-END, got %q", s)
	}
	h1, err := parseHour(start)
	if err != nil {
		return models.HourWindow{}, err
	}
	h2, err := parseHour(end)
	if err != nil {
		return models.HourWindow{}, err
	}
	w := models.HourWindow{Start: h1, End: h2}
	if err := w.Validate(); err != nil {
		return models.HourWindow{}, err
	}
	return w, nil
}

func parseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":00")
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	return h, nil
}

var errBadDateTime = errors.New("expected YYYY-MM-DD HH:MM")

// parseLocalDateTime reads a wall-clock time in loc.
func parseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errBadDateTime
	}
	return t, nil
}

func formatInstant(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}

// formatRecommendation renders a recommendation as MarkdownV2.
func formatRecommendation(title string, customer *models.Customer, senderTZ string, rec *models.ScheduleRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(title))
	fmt.Fprintf(&b, "Customer time: %s\n", escapeMarkdown(formatInstant(rec.RecommendedTime, customer.Timezone)))
	fmt.Fprintf(&b, "Your time: %s\n", escapeMarkdown(formatInstant(rec.RecommendedTime, senderTZ)))
	if rec.NextBusinessDay != "" {
		fmt.Fprintf(&b, "Next business day: %s\n", escapeMarkdown(rec.NextBusinessDay))
	}
	if rec.IsHoliday && rec.HolidayName != "" {
		fmt.Fprintf(&b, "Skipped holiday: %s\n", escapeMarkdown(rec.HolidayName))
	}
	fmt.Fprintf(&b, "Friendliness: %d/4, preference score: %d\n", rec.FriendlinessScore, rec.PreferenceScore)
	fmt.Fprintf(&b, "\n_%s_", escapeMarkdown(rec.Reason))
	return b.String()
}

// formatItem renders one line of the focus list.
func formatItem(customer *models.Customer, item *models.FocusItem) string {
	line := fmt.Sprintf("*%s* \\(%s\\)", escapeMarkdown(customer.Name), escapeMarkdown(customer.Timezone))
	if item == nil {
		return line + " no schedule"
	}

	line += " " + escapeMarkdown(string(item.Status()))
	if t := item.DisplayedTime(); t != nil {
		line += ": " + escapeMarkdown(formatInstant(*t, customer.Timezone))
	}
	if item.ReminderSet && item.ReminderAt != nil {
		line += " ⏰ " + escapeMarkdown(formatInstant(*item.ReminderAt, customer.Timezone))
	}
	if item.Intent != "" {
		line += "\n  " + escapeMarkdown(item.Intent)
	}
	return line
}
