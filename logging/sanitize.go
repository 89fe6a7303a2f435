package logging

import (
	"strings"
)

const maxLineLength = 512

// Masked replaces secrets in rendered log lines.
const Masked = "****"

// credentialCommands are the commands whose arguments are never logged.
var credentialCommands = []string{"PASS", "AUTH", "USER", "APOP"}

// Sanitize escapes control characters and truncates the line so that one protocol line renders as one log line.
func Sanitize(line string) string {
	line = strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(strings.TrimRight(line, "\r\n"))

	if len(line) > maxLineLength {
		line = line[:maxLineLength] + "..."
	}

	return line
}

// RedactCommand returns the command with any credential arguments replaced by a placeholder.
// Only the command verb and, for AUTH, the mechanism name survive.
func RedactCommand(line string) string {
	verb, rest, hasArgs := strings.Cut(line, " ")

	for _, cmd := range credentialCommands {
		if !strings.EqualFold(verb, cmd) {
			continue
		}

		if !hasArgs {
			return verb
		}

		if strings.EqualFold(cmd, "AUTH") {
			mech, _, hasResponse := strings.Cut(rest, " ")
			if !hasResponse {
				return verb + " " + mech
			}

			return verb + " " + mech + " " + Masked
		}

		return verb + " " + Masked
	}

	return Sanitize(line)
}
