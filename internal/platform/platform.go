package platform

type Platform string

const (
	Android    Platform = "android"
	Cocoa      Platform = "cocoa"
	Java       Platform = "java"
	JavaScript Platform = "javascript"
	Node       Platform = "node"
	PHP        Platform = "php"
	Python     Platform = "python"
	Rust       Platform = "rust"
)
