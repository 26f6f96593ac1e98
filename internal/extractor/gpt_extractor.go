package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/models"
)

const systemPrompt = `You extract contact scheduling preferences from CRM notes.

Respond with ONLY a JSON object (no markdown, no explanation) with exactly these fields:
{
  "preferred_time_windows": [{"start": "HH:MM", "end": "HH:MM"}],
  "avoid_time_windows": [{"start": "HH:MM", "end": "HH:MM"}],
  "preferred_weekdays": ["MON"],
  "avoid_weekdays": ["FRI"],
  "preferred_dates": ["YYYY-MM-DD"],
  "avoid_dates": ["YYYY-MM-DD"],
  "preferred_date_ranges": [{"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}],
  "avoid_date_ranges": [{"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}],
  "confidence": 0.0,
  "notes_language": "en"
}

Rules:
- Times are 24-hour "HH:MM" in the customer's local timezone.
- Dates are "YYYY-MM-DD". Resolve relative dates against today's date from the context.
- Weekdays are exactly MON, TUE, WED, THU, FRI, SAT, SUN.
- notes_language is "zh", "en", "mixed" or "unknown".
- confidence is between 0.0 (nothing found) and 1.0 (very clear preferences).
- Use empty arrays when nothing of a kind is stated. Only extract what is explicitly stated.
- If something is both preferred and avoided, keep only the avoid entry.

Examples:
- "Don't call on Fridays" -> avoid_weekdays: ["FRI"]
- "Mon to Thu 9-11am works best" -> preferred_weekdays: ["MON","TUE","WED","THU"], preferred_time_windows: [{"start":"09:00","end":"11:00"}]
- "On vacation March 1-3" -> avoid_date_ranges: [{"start":"2026-03-01","end":"2026-03-03"}]
- "Mornings are inconvenient" -> avoid_time_windows: [{"start":"06:00","end":"12:00"}]`

// Defaults used when GPTConfig leaves a field zero.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.1
	DefaultMaxRetries  = 2
)

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

// GPTExtractor asks a chat model for structured preferences. Malformed
// answers are retried; once retries run out it returns empty preferences.
// Transport and API errors are returned to the caller unchanged.
type GPTExtractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	maxRetries  int
	logger      *zap.Logger
}

// NewGPTExtractor fills unset fields with defaults. Zero is a valid
// temperature; only a negative one counts as unset.
func NewGPTExtractor(cfg GPTConfig, logger *zap.Logger) *GPTExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &GPTExtractor{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}
}

func (e *GPTExtractor) Extract(ctx context.Context, req Request) (*models.ExtractedPreferences, error) {
	if strings.TrimSpace(req.Notes) == "" {
		return models.EmptyPreferences(), nil
	}

	// Notes content is never logged.
	logFields := []zap.Field{
		zap.String("country", req.CountryCode),
		zap.String("timezone", req.Timezone),
		zap.String("today", req.TodayLocalDate),
		zap.Int("notes_length", len(req.Notes)),
		zap.String("model", e.model),
	}
	e.logger.Info("Preference extraction started", logFields...)

	userPrompt := buildUserPrompt(req)
	temperature := float32(e.temperature)
	if temperature == 0 {
		// go-openai omits a zero temperature and the API would fall back to 1.
		temperature = math.SmallestNonzeroFloat32
	}
	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		started := time.Now()
		resp, err := e.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: e.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
				MaxTokens:   e.maxTokens,
				Temperature: temperature,
			},
		)
		if err != nil {
			e.logger.Error("Failed to get GPT response", append(logFields, zap.Error(err))...)
			return nil, fmt.Errorf("preference extraction: %w", err)
		}

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			e.logger.Warn("Empty GPT response",
				append(logFields, zap.Int("attempt", attempt), zap.Duration("elapsed", time.Since(started)))...)
			continue
		}

		prefs, err := ParseResponse(resp.Choices[0].Message.Content)
		if err != nil {
			e.logger.Warn("Failed to parse GPT response",
				append(logFields, zap.Int("attempt", attempt), zap.Error(err))...)
			continue
		}

		e.logger.Info("Preference extraction completed",
			append(logFields,
				zap.Int("attempt", attempt),
				zap.Float64("confidence", prefs.Confidence),
				zap.Duration("elapsed", time.Since(started)))...)
		return prefs, nil
	}

	e.logger.Warn("Preference extraction exhausted retries, using empty preferences", logFields...)
	return models.EmptyPreferences(), nil
}

func buildUserPrompt(req Request) string {
	var parts []string
	if req.CountryCode != "" {
		parts = append(parts, "Customer country: "+req.CountryCode)
	}
	if req.Timezone != "" {
		parts = append(parts, "Customer timezone: "+req.Timezone)
	}
	if req.TodayLocalDate != "" {
		parts = append(parts, "Today's date (customer local): "+req.TodayLocalDate)
	}
	contextStr := "No additional context provided."
	if len(parts) > 0 {
		contextStr = strings.Join(parts, "\n")
	}

	return fmt.Sprintf(`Extract scheduling preferences from these CRM notes.

Context for relative dates such as "next week" or "tomorrow":
%s

CRM Notes:
%s

Output ONLY the JSON object. All dates and times are in the customer's local timezone.`, contextStr, req.Notes)
}

var (
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$|^24:00$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseResponse strips an optional markdown fence and validates every field.
func ParseResponse(content string) (*models.ExtractedPreferences, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var prefs models.ExtractedPreferences
	if err := json.Unmarshal([]byte(cleaned), &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse response as JSON: %w", err)
	}
	if err := validate(&prefs); err != nil {
		return nil, fmt.Errorf("response validation failed: %w", err)
	}
	return &prefs, nil
}

func validate(p *models.ExtractedPreferences) error {
	for _, windows := range [][]models.TimeWindow{p.PreferredTimeWindows, p.AvoidTimeWindows} {
		for _, w := range windows {
			if !clockPattern.MatchString(w.Start) || !clockPattern.MatchString(w.End) {
				return fmt.Errorf("invalid time window %s-%s", w.Start, w.End)
			}
		}
	}

	for _, days := range []*[]models.Weekday{&p.PreferredWeekdays, &p.AvoidWeekdays} {
		for i, d := range *days {
			parsed, err := models.ParseWeekday(string(d))
			if err != nil {
				return err
			}
			(*days)[i] = parsed
		}
	}

	for _, dates := range [][]string{p.PreferredDates, p.AvoidDates} {
		for _, d := range dates {
			if err := checkDate(d); err != nil {
				return err
			}
		}
	}
	for _, ranges := range [][]models.DateRange{p.PreferredDateRanges, p.AvoidDateRanges} {
		for _, r := range ranges {
			if err := checkDate(r.Start); err != nil {
				return err
			}
			if err := checkDate(r.End); err != nil {
				return err
			}
			if r.End < r.Start {
				return fmt.Errorf("date range %s..%s ends before it starts", r.Start, r.End)
			}
		}
	}

	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	if p.NotesLanguage == "" {
		p.NotesLanguage = "unknown"
	}
	fillEmpty(p)
	return nil
}

func checkDate(s string) error {
	if !datePattern.MatchString(s) {
		return fmt.Errorf("invalid date %q", s)
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	return nil
}

// fillEmpty replaces nil lists so stored JSON always carries arrays.
func fillEmpty(p *models.ExtractedPreferences) {
	empty := models.EmptyPreferences()
	if p.PreferredTimeWindows == nil {
		p.PreferredTimeWindows = empty.PreferredTimeWindows
	}
	if p.AvoidTimeWindows == nil {
		p.AvoidTimeWindows = empty.AvoidTimeWindows
	}
	if p.PreferredWeekdays == nil {
		p.PreferredWeekdays = empty.PreferredWeekdays
	}
	if p.AvoidWeekdays == nil {
		p.AvoidWeekdays = empty.AvoidWeekdays
	}
	if p.PreferredDates == nil {
		p.PreferredDates = empty.PreferredDates
	}
	if p.AvoidDates == nil {
		p.AvoidDates = empty.AvoidDates
	}
	if p.PreferredDateRanges == nil {
		p.PreferredDateRanges = empty.PreferredDateRanges
	}
	if p.AvoidDateRanges == nil {
		p.AvoidDateRanges = empty.AvoidDateRanges
	}
}
