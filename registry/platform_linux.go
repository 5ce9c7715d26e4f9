package registry

import (
	"os"
	"strings"
)

// readPlatformIdentity collects host identity properties. The DMI files
// are root-readable on most distributions, so each one is optional.
func readPlatformIdentity() map[string]string {
	props := map[string]string{}

	if id := readTrimmed("/etc/machine-id", "/var/lib/dbus/machine-id"); id != "" {
		props[KeyPlatformUUID] = id
	}
	if uuid := readTrimmed("/sys/class/dmi/id/product_uuid"); uuid != "" {
		// Prefer the firmware UUID when it is readable.
		props[KeyPlatformUUID] = uuid
	}
	if serial := readTrimmed("/sys/class/dmi/id/product_serial"); serial != "" {
		props[KeyPlatformSerial] = serial
	}
	if model := readTrimmed("/sys/class/dmi/id/product_name"); model != "" {
		props[KeyModel] = model
	}

	return props
}

func readTrimmed(paths ...string) string {
	for _, path := range paths {
		buf, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if s := strings.TrimSpace(string(buf)); s != "" {
			return s
		}
	}
	return ""
}
