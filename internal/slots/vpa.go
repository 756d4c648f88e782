package slots

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var strictVPAPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+$`)

// KnownHandles lists the bank handles payees commonly use.
var KnownHandles = []string{
	"paytm", "phonepe", "googlepay", "gpay", "amazonpay", "mobikwik",
	"freecharge", "airtel", "jio", "barodampay", "hdfcbank", "sbi",
	"icici", "axisbank", "yesbank", "pnb", "upi", "bhim", "ibl", "ybl",
	"okaxis", "okhdfcbank", "okicici", "oksbi", "axl",
	"federal", "kotak", "cub", "rbl", "indianbank", "canarabank",
}

func ValidVPA(id string) bool {
	return strictVPAPattern.MatchString(id)
}

// SuggestHandle proposes a corrected VPA when the handle is unknown but
// close to a known one, e.g. john@payym -> john@paytm.
func SuggestHandle(id string) (string, bool) {
	local, handle, ok := strings.Cut(strings.ToLower(id), "@")
	if !ok || local == "" || handle == "" {
		return "", false
	}
	maxDist := 2
	if len(handle) < 5 {
		maxDist = 1
	}
	best := ""
	bestDist := maxDist + 1
	for _, known := range KnownHandles {
		if known == handle {
			return "", false
		}
		d := levenshtein.ComputeDistance(handle, known)
		if d < bestDist {
			best, bestDist = known, d
		}
	}
	if best == "" {
		return "", false
	}
	return local + "@" + best, true
}

// MaskVPA keeps the first two characters of the local part and the handle.
func MaskVPA(id string) string {
	local, handle, ok := strings.Cut(id, "@")
	if !ok {
		if len(id) <= 2 {
			return strings.Repeat("*", len(id))
		}
		return id[:2] + strings.Repeat("*", len(id)-2)
	}
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + "@" + handle
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + "@" + handle
}
