package packageutil

import "strings"

var (
	cocoaSystemPrefixes = []string{
		"/System/Library/",
		"/usr/lib/",
		"/Library/Apple/",
		"/Developer/",
	}
	nativeSystemPrefixes = []string{
		"/usr/lib/",
		"/usr/lib64/",
		"/lib/",
		"/lib64/",
		"/system/",
		"/apex/",
		"/vendor/",
		`c:\windows\`,
	}
)

// IsCocoaApplicationImage determines whether the image represents that of the
// application binary (or a binary embedded in the application binary) by
// checking its path.
func IsCocoaApplicationImage(path string) bool {
	// These are the path patterns that iOS uses for applications.
	if strings.HasPrefix(path, "/private/var/containers") ||
		strings.HasPrefix(path, "/var/containers") ||
		strings.Contains(path, "/Developer/Xcode/DerivedData") ||
		strings.Contains(path, "/data/Containers/Bundle/Application") {
		return true
	}
	return !hasAnyPrefix(path, cocoaSystemPrefixes)
}

// IsNativeApplicationImage determines whether an ELF or PE image was shipped
// with the application rather than with the operating system.
func IsNativeApplicationImage(path string) bool {
	return !hasAnyPrefix(strings.ToLower(path), nativeSystemPrefixes)
}

// IsApplicationImage dispatches on the debug_meta image type. Images without
// a code file can't be classified and count as application images.
func IsApplicationImage(imageType, codeFile string) bool {
	if codeFile == "" {
		return true
	}
	switch imageType {
	case "macho", "apple":
		return IsCocoaApplicationImage(codeFile)
	case "elf", "pe", "symbolic":
		return IsNativeApplicationImage(codeFile)
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
