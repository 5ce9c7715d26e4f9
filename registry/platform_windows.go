package registry

import winreg "golang.org/x/sys/windows/registry"

func readPlatformIdentity() map[string]string {
	props := map[string]string{}

	if guid := readRegString(`SOFTWARE\Microsoft\Cryptography`, "MachineGuid"); guid != "" {
		props[KeyPlatformUUID] = guid
	}
	if model := readRegString(`HARDWARE\DESCRIPTION\System\BIOS`, "SystemProductName"); model != "" {
		props[KeyModel] = model
	}
	if serial := readRegString(`HARDWARE\DESCRIPTION\System\BIOS`, "SystemSerialNumber"); serial != "" {
		props[KeyPlatformSerial] = serial
	}

	return props
}

func readRegString(path, name string) string {
	key, err := winreg.OpenKey(winreg.LOCAL_MACHINE, path, winreg.QUERY_VALUE|winreg.WOW64_64KEY)
	if err != nil {
		return ""
	}
	defer key.Close()

	value, _, err := key.GetStringValue(name)
	if err != nil {
		return ""
	}
	return value
}
