package events

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeTokenPattern matches $HH:MM[:SS], mirroring event.py's
// timepattern regex.
var timeTokenPattern = regexp.MustCompile(`\$([0-1]?[0-9]|2[0-3]):([0-5][0-9])(?::([0-5][0-9]))?`)

// secondsOfDay converts an HH:MM:SS triple into seconds since local
// midnight.
func secondsOfDay(h, m, s int) int {
	return h*3600 + m*60 + s
}

// substituteTimeTokens replaces every "$now" with nowSeconds and every
// "$HH:MM[:SS]" token with its seconds-since-midnight equivalent,
// leaving a plain boolean/arithmetic expression ready for expr.Eval.
func substituteTimeTokens(raw string, nowSeconds int) (string, error) {
	out := strings.ReplaceAll(raw, "$now", strconv.Itoa(nowSeconds))

	var convErr error
	out = timeTokenPattern.ReplaceAllStringFunc(out, func(match string) string {
		groups := timeTokenPattern.FindStringSubmatch(match)
		h, err := strconv.Atoi(groups[1])
		if err != nil {
			convErr = err
			return match
		}
		m, err := strconv.Atoi(groups[2])
		if err != nil {
			convErr = err
			return match
		}
		s := 0
		if groups[3] != "" {
			s, err = strconv.Atoi(groups[3])
			if err != nil {
				convErr = err
				return match
			}
		}
		return strconv.Itoa(secondsOfDay(h, m, s))
	})
	if convErr != nil {
		return "", fmt.Errorf("events: malformed time token: %w", convErr)
	}
	return out, nil
}
