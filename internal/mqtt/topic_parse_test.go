package mqtt

import "testing"

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		topic  string
		prefix string
		want   string
		ok     bool
	}{
		{topic: "voicepay/device/phone-1/apps", prefix: "voicepay", want: "phone-1", ok: true},
		{topic: "home/pay/device/phone-2/result/r1", prefix: "home/pay", want: "phone-2", ok: true},
		{topic: "other/device/phone-1/apps", prefix: "voicepay", ok: false},
		{topic: "voicepay/terminal/phone-1/apps", prefix: "voicepay", ok: false},
		{topic: "voicepay/device", prefix: "voicepay", ok: false},
		{topic: "voicepay/device//apps", prefix: "voicepay", ok: false},
	}
	for _, tc := range tests {
		got, err := ParseDeviceID(tc.topic, tc.prefix)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("ParseDeviceID(%q)=(%q,%v), want (%q, ok=%v)", tc.topic, got, err, tc.want, tc.ok)
		}
	}
}

func TestTopicsRoundTrip(t *testing.T) {
	topic := TopicResult("voicepay", "phone-1", "req-9")
	id, err := ParseDeviceID(topic, "voicepay")
	if err != nil || id != "phone-1" {
		t.Fatalf("ParseDeviceID(%q)=(%q,%v)", topic, id, err)
	}
	if got := ParseRequestID(topic); got != "req-9" {
		t.Fatalf("ParseRequestID(%q)=%q, want req-9", topic, got)
	}
	if got := TopicSpeak("voicepay", "phone-1"); got != "voicepay/device/phone-1/speak" {
		t.Fatalf("TopicSpeak=%q", got)
	}
}

func TestParseRequestID(t *testing.T) {
	tests := map[string]string{
		"voicepay/device/phone-1/invoke/abc": "abc",
		"voicepay/device/phone-1/result/":    "",
		"plain":                              "plain",
	}
	for topic, want := range tests {
		if got := ParseRequestID(topic); got != want {
			t.Fatalf("ParseRequestID(%q)=%q, want %q", topic, got, want)
		}
	}
}
