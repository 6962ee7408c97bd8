package platform

type Platform string

const (
	Android Platform = "android"
	Cocoa   Platform = "cocoa"
	Native  Platform = "native"
)
