package license

import "strings"

// Device labels stored in device_name.
const (
	DeviceApple   = "Apple Device"
	DeviceWindows = "Windows PC"
	DeviceAndroid = "Android Device"
	DeviceLinux   = "Linux PC"
	DeviceUnknown = "Unknown Device"
)

var deviceLabelRules = []struct {
	needles []string
	label   string
}{
	{[]string{"iPhone", "iPad", "Macintosh", "Mac OS"}, DeviceApple},
	{[]string{"Windows"}, DeviceWindows},
	// Android UAs also say Linux, so Android is matched first.
	{[]string{"Android"}, DeviceAndroid},
	{[]string{"Linux", "X11"}, DeviceLinux},
}

// DeviceLabel classifies a user-agent string into a coarse device label.
func DeviceLabel(userAgent string) string {
	for _, rule := range deviceLabelRules {
		for _, needle := range rule.needles {
			if strings.Contains(userAgent, needle) {
				return rule.label
			}
		}
	}
	return DeviceUnknown
}
