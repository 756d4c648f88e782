package slots

import "testing"

func TestValidVPA(t *testing.T) {
	if !ValidVPA("john.doe@okaxis") {
		t.Fatalf("expected valid")
	}
	if ValidVPA("john doe@paytm") {
		t.Fatalf("space should be invalid")
	}
	if ValidVPA("johnpaytm") {
		t.Fatalf("missing handle should be invalid")
	}
}

func TestSuggestHandle(t *testing.T) {
	got, ok := SuggestHandle("john@payym")
	if !ok || got != "john@paytm" {
		t.Fatalf("SuggestHandle()=(%q,%v), want john@paytm", got, ok)
	}
	if _, ok := SuggestHandle("john@paytm"); ok {
		t.Fatalf("known handle should not get a suggestion")
	}
	if _, ok := SuggestHandle("john@zzzzzzzz"); ok {
		t.Fatalf("distant handle should not get a suggestion")
	}
	if _, ok := SuggestHandle("nohandle"); ok {
		t.Fatalf("missing handle should not get a suggestion")
	}
}

func TestMaskVPA(t *testing.T) {
	tests := map[string]string{
		"john@paytm":     "jo**@paytm",
		"ab@ybl":         "**@ybl",
		"9876543210@ybl": "98********@ybl",
	}
	for in, want := range tests {
		if got := MaskVPA(in); got != want {
			t.Fatalf("MaskVPA(%q)=%q, want %q", in, got, want)
		}
	}
}
