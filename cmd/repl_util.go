package cmd

import (
	"strings"
)

func trimTrailingSemicolon(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasSuffix(t, ";") {
		return strings.TrimSpace(strings.TrimSuffix(t, ";"))
	}
	return t
}

func isMetaCommandStart(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "\\")
}

func parseMetaCommand(input string) (string, []string) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", nil
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return cmd, args
}

// shouldRecordHistory keeps questions and commands, but never the add
// dialog, which may carry a password.
func shouldRecordHistory(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	cmd, _ := parseMetaCommand(s)
	return !strings.EqualFold(cmd, "\\add")
}
