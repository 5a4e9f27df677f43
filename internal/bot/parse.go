package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParsePhraseArg validates a /watch argument.
func ParsePhraseArg(args string) (string, error) {
	phrase := strings.Join(strings.Fields(args), " ")
	if phrase == "" {
		return "", fmt.Errorf("phrase is required")
	}
	if len(phrase) > maxPhraseLen {
		return "", fmt.Errorf("phrase too long, max %d characters", maxPhraseLen)
	}
	return phrase, nil
}

// ParseCallbackData splits inline button data of the form "action:id".
func ParseCallbackData(data string) (string, int64, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed callback data %q", data)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed callback ID %q", parts[1])
	}
	return parts[0], id, nil
}
