package registry

import "golang.org/x/sys/unix"

func readPlatformIdentity() map[string]string {
	props := map[string]string{}

	if uuid, err := unix.Sysctl("kern.uuid"); err == nil && uuid != "" {
		props[KeyPlatformUUID] = uuid
	}
	if model, err := unix.Sysctl("hw.model"); err == nil && model != "" {
		props[KeyModel] = model
	}

	return props
}
