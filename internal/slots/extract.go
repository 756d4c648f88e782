package slots

import (
	"errors"
	"regexp"
	"strings"

	"voicepay/internal/domain"
	"voicepay/internal/intent"
)

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+(?:\.\d{2})?)\s*(?:rupees?|rs?\.?|₹)`),
	regexp.MustCompile(`(?:rupees?|rs?\.?|₹)\s*(\d+(?:\.\d{2})?)`),
	regexp.MustCompile(`(\d+(?:\.\d{2})?)`),
}

var (
	vpaPattern   = regexp.MustCompile(`([a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+)`)
	phonePattern = regexp.MustCompile(`(\d{10})`)
)

var descriptionMarkers = []string{"for ", "description ", "note ", "memo "}

// ExtractAmount returns the first amount matched by the currency-suffixed,
// currency-prefixed and bare-digit patterns, tried in that order. Digit runs
// too large to hold saturate to domain.MaxAmount so they still hit the ceiling.
func ExtractAmount(u intent.NormalizedUtterance) (domain.Amount, bool) {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(string(u))
		if m == nil {
			continue
		}
		amount, err := domain.ParseAmount(m[1])
		if errors.Is(err, domain.ErrAmountOutOfRange) {
			return domain.MaxAmount, true
		}
		if err != nil {
			return 0, false
		}
		return amount, true
	}
	return 0, false
}

// ExtractRecipient returns a VPA-shaped token, or a ten digit phone number
// turned into a VPA on defaultHandle.
func ExtractRecipient(u intent.NormalizedUtterance, defaultHandle string) (string, bool) {
	if m := vpaPattern.FindStringSubmatch(string(u)); m != nil {
		return m[1], true
	}
	if m := phonePattern.FindStringSubmatch(string(u)); m != nil {
		return m[1] + "@" + defaultHandle, true
	}
	return "", false
}

func ExtractDescription(u intent.NormalizedUtterance) (string, bool) {
	s := string(u)
	for _, marker := range descriptionMarkers {
		idx := strings.Index(s, marker)
		if idx == -1 {
			continue
		}
		if desc := strings.TrimSpace(s[idx+len(marker):]); desc != "" {
			return desc, true
		}
	}
	return "", false
}
