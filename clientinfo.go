package connectx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// NetworkType describes the active network as the backend expects it.
type NetworkType struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ClientInfo is the device and application context attached to tracking,
// identify and ticket payloads.
type ClientInfo struct {
	Language           string
	Source             string
	Type               string
	DeviceType         string
	NetworkType        NetworkType
	AppVersion         string
	AppBuild           string
	Fingerprint        string
	DeviceID           string
	Device             string
	// Model is the device model, sent as "device".
	Model              string
	DeviceManufacturer string
	OS                 string
	OSVersion          string
}

// DefaultClientInfo derives a ClientInfo from the running process.
// The device id is a name-based UUID of the host name, so it is stable
// across restarts on the same machine.
func DefaultClientInfo() ClientInfo {
	host, _ := os.Hostname()
	deviceID := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host)).String()

	return ClientInfo{
		Language:    language(),
		Source:      filepath.Base(os.Args[0]),
		Type:        "Go App",
		DeviceType:  "Server",
		NetworkType: NetworkType{Label: "Other", Value: "other"},
		AppVersion:  "unknown",
		AppBuild:    "-1",
		Fingerprint: deviceID,
		DeviceID:    deviceID,
		Device:      host,
		Model:       runtime.GOOS + "/" + runtime.GOARCH,
		OS:          runtime.GOOS,
	}
}

// language returns the two-letter language from the POSIX locale variables.
func language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, "_.@"); i > 0 {
			v = v[:i]
		}
		return strings.ToLower(v)
	}
	return "en"
}

// fields renders the context as the cx_* attribute block.
func (ci ClientInfo) fields(userAgent string) map[string]any {
	return map[string]any{
		"cx_isBrowser":          "false",
		"cx_language":           ci.Language,
		"cx_browserName":        "",
		"cx_browserVersion":     "",
		"cx_engineName":         "Go",
		"cx_engineVersion":      runtime.Version(),
		"cx_userAgent":          userAgent,
		"cx_source":             ci.Source,
		"cx_type":               ci.Type,
		"cx_deviceType":         ci.DeviceType,
		"cx_networkType":        ci.NetworkType,
		"cx_appVersion":         ci.AppVersion,
		"cx_appBuild":           ci.AppBuild,
		"cx_libraryVersion":     Version,
		"cx_libraryPlatform":    "Go",
		"cx_fingerprint":        ci.Fingerprint,
		"cx_deviceId":           ci.DeviceID,
		"cx_device":             ci.Device,
		"cx_deviceManufacturer": ci.DeviceManufacturer,
		"cx_os":                 ci.OS,
		"cx_osVersion":          ci.OSVersion,
		"device":                ci.Model,
	}
}
