package parsers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"healthpass/internal/documents/models"
)

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}

// parseTimestamp accepts RFC 3339 or unix seconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func parseTestType(s string) (models.TestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcr", "naat":
		return models.TestTypePCR, nil
	case "antigen", "rat":
		return models.TestTypeAntigen, nil
	case "antibody":
		return models.TestTypeAntibody, nil
	}
	return "", fmt.Errorf("unknown test type %q", s)
}

// parseNegative reads a test outcome; true means negative.
func parseNegative(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "neg", "negative":
		return true, nil
	case "p", "pos", "positive":
		return false, nil
	}
	return false, fmt.Errorf("unknown test result %q", s)
}

func required(fields map[string]string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(fields[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
