package mqtt

import (
	"fmt"
	"strings"
)

// ParseDeviceID extracts the device id from {prefix}/device/{id}/{kind}/...
func ParseDeviceID(topic, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/device/")
	if !ok {
		return "", fmt.Errorf("not a device topic under %q: %s", prefix, topic)
	}
	id, kind, ok := strings.Cut(rest, "/")
	if !ok || kind == "" {
		return "", fmt.Errorf("device topic without kind: %s", topic)
	}
	if id == "" {
		return "", fmt.Errorf("empty device id: %s", topic)
	}
	return id, nil
}

// ParseRequestID returns the last topic level, which carries the request id
// on invoke and result topics.
func ParseRequestID(topic string) string {
	return topic[strings.LastIndexByte(topic, '/')+1:]
}
