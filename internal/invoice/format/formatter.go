package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

// DefaultReferenceTemplate yields references such as "INV-202408-0001".
const DefaultReferenceTemplate = "{PREFIX}-{YYYY}{MM}-{SEQ4}"

// FormatReference formats a document reference from a template, a document
// prefix, the issue time and a sequence number. It has no side effects.
func FormatReference(
	template string,
	prefix string,
	issuedAt time.Time,
	seq int64,
) (string, error) {

	if template == "" {
		return "", fmt.Errorf("reference template is empty")
	}

	if seq <= 0 {
		return "", fmt.Errorf("invalid reference sequence: %d", seq)
	}

	out := template

	out = strings.ReplaceAll(out, "{PREFIX}", strings.ToUpper(strings.TrimSpace(prefix)))

	// Date tokens
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}

		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in reference format: %s", out)
	}

	return out, nil
}
