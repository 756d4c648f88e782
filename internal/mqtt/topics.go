package mqtt

import "fmt"

func TopicDeviceApps(prefix string) string {
	return fmt.Sprintf("%s/device/+/apps", prefix)
}

func TopicDeviceOnline(prefix string) string {
	return fmt.Sprintf("%s/device/+/online", prefix)
}

func TopicDeviceHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/device/+/heartbeat", prefix)
}

func TopicDeviceResult(prefix string) string {
	return fmt.Sprintf("%s/device/+/result/+", prefix)
}

func TopicInvoke(prefix, deviceID, requestID string) string {
	return fmt.Sprintf("%s/device/%s/invoke/%s", prefix, deviceID, requestID)
}

func TopicInvokeAll(prefix, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/invoke/+", prefix, deviceID)
}

func TopicResult(prefix, deviceID, requestID string) string {
	return fmt.Sprintf("%s/device/%s/result/%s", prefix, deviceID, requestID)
}

func TopicApps(prefix, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/apps", prefix, deviceID)
}

func TopicOnline(prefix, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/online", prefix, deviceID)
}

func TopicHeartbeat(prefix, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/heartbeat", prefix, deviceID)
}

func TopicSpeak(prefix, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/speak", prefix, deviceID)
}
