package frame

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/getsentry/flamegraph/internal/platform"
)

type (
	// ID identifies a unique Frame inside a Table.
	ID uint32

	// Frame is the interned, structural identity of a stack location. Two
	// frames with the same fields are the same frame.
	Frame struct {
		Name          string `json:"name"`
		File          string `json:"file,omitempty"`
		Line          uint32 `json:"line,omitempty"`
		IsApplication bool   `json:"is_application"`
	}

	// Raw is a frame descriptor as reported by a profile, before
	// classification and interning.
	Raw struct {
		Name          string `json:"name"`
		File          string `json:"file,omitempty"`
		Path          string `json:"path,omitempty"`
		Module        string `json:"module,omitempty"`
		Package       string `json:"package,omitempty"`
		Line          uint32 `json:"line,omitempty"`
		IsApplication *bool  `json:"is_application,omitempty"`
	}
)

// NoID is the frame id carried by the root of a call tree.
const NoID ID = ^ID(0)

func (f Frame) Fingerprint() string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s:%s:%d:%t", f.File, f.Name, f.Line, f.IsApplication)))
	return hex.EncodeToString(hash[:])
}

// Frame classifies the descriptor for the given platform and returns its
// structural identity.
func (r Raw) Frame(p platform.Platform) Frame {
	file := r.File
	if file == "" {
		file = r.Path
	}
	return Frame{
		Name:          r.Name,
		File:          file,
		Line:          r.Line,
		IsApplication: r.Classify(p),
	}
}

// Classify returns whether the frame belongs to the application. An explicit
// hint always wins. Without one, a platform heuristic is applied. Anything we
// can't classify is considered a system frame.
func (r Raw) Classify(p platform.Platform) bool {
	if r.IsApplication != nil {
		return *r.IsApplication
	}
	switch p {
	case platform.Python:
		return r.IsPythonApplicationFrame()
	case platform.Node, platform.JavaScript:
		return r.IsNodeApplicationFrame()
	case platform.Cocoa:
		return r.IsCocoaApplicationFrame()
	case platform.Rust:
		return r.IsRustApplicationFrame()
	case platform.Android, platform.Java:
		return r.IsJavaApplicationFrame()
	}
	return false
}

func (r Raw) IsNodeApplicationFrame() bool {
	p := r.Path
	if p == "" {
		p = r.File
	}
	if p == "" || strings.HasPrefix(p, "node:") {
		return false
	}
	return !strings.Contains(p, "node_modules")
}

// IsCocoaApplicationFrame checks the image path against the locations iOS
// and macOS use for applications, system libraries are stored elsewhere.
func (r Raw) IsCocoaApplicationFrame() bool {
	return strings.HasPrefix(r.Package, "/private/var/containers") ||
		strings.HasPrefix(r.Package, "/var/containers") ||
		strings.Contains(r.Package, "/Developer/Xcode/DerivedData") ||
		strings.Contains(r.Package, "/data/Containers/Bundle/Application")
}

func (r Raw) IsRustApplicationFrame() bool {
	p := r.Package
	// `/library/std/src/` and `/usr/lib/system/` come from a real profile collected on macos.
	return p != "" &&
		!strings.Contains(p, "/library/std/src/") &&
		!strings.HasPrefix(p, "/usr/lib/system/") &&
		!strings.HasPrefix(p, "/rustc/") &&
		!strings.HasPrefix(p, "/usr/local/rustup/") &&
		!strings.HasPrefix(p, "/usr/local/cargo/")
}

var javaSystemPrefixes = []string{
	"android.",
	"androidx.",
	"com.android.",
	"com.google.android.",
	"com.motorola.",
	"dalvik.",
	"java.",
	"javax.",
	"kotlin.",
	"kotlinx.",
	"retrofit2.",
	"sun.",
}

func (r Raw) IsJavaApplicationFrame() bool {
	pkg := r.Package
	if pkg == "" {
		pkg = r.Module
	}
	if pkg == "" {
		return false
	}
	for _, p := range javaSystemPrefixes {
		if strings.HasPrefix(pkg, p) {
			return false
		}
	}
	return true
}

func (r Raw) IsPythonApplicationFrame() bool {
	if strings.Contains(r.Path, "/site-packages/") ||
		strings.Contains(r.Path, "/dist-packages/") ||
		strings.Contains(r.Path, "\\site-packages\\") ||
		strings.Contains(r.Path, "\\dist-packages\\") {
		return false
	}
	if r.Module == "" && r.Path == "" {
		return false
	}
	module := strings.SplitN(r.Module, ".", 2)
	_, ok := pythonStdlib[module[0]]
	return !ok
}

var pythonStdlib = map[string]struct{}{
	"abc":          {},
	"asyncio":      {},
	"collections":  {},
	"concurrent":   {},
	"contextlib":   {},
	"copy":         {},
	"functools":    {},
	"http":         {},
	"importlib":    {},
	"io":           {},
	"json":         {},
	"logging":      {},
	"os":           {},
	"queue":        {},
	"re":           {},
	"selectors":    {},
	"socket":       {},
	"socketserver": {},
	"ssl":          {},
	"subprocess":   {},
	"threading":    {},
	"time":         {},
	"typing":       {},
	"urllib":       {},
	"wsgiref":      {},
}
