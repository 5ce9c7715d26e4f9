//go:build !linux && !darwin && !windows

package registry

func readPlatformIdentity() map[string]string {
	return map[string]string{}
}
