package platform

import "fmt"

// Root is a configuration-store hive.
type Root int

const (
	LocalMachine Root = iota
	CurrentUser
	ClassesRoot
	Users
)

func (r Root) String() string {
	switch r {
	case LocalMachine:
		return "HKLM"
	case CurrentUser:
		return "HKCU"
	case ClassesRoot:
		return "HKCR"
	case Users:
		return "HKU"
	default:
		return fmt.Sprintf("Root(%d)", int(r))
	}
}

// ValueKind is the stored type of a value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindExpandString
	KindMultiString
	KindDWord
	KindQWord
	KindBinary
	KindOther
)

// IsString reports whether Data holds the value's textual contents.
func (k ValueKind) IsString() bool {
	return k == KindString || k == KindExpandString || k == KindMultiString
}

// Value is a named value under a key. The default value has an empty Name.
// Data is the textual rendering; multi-string values are joined with ";".
type Value struct {
	Name string
	Kind ValueKind
	Data string
}

// ConfigStore is the hierarchical key/value configuration store (the
// registry on Windows). Paths are backslash-separated and relative to root.
type ConfigStore interface {
	SubKeys(root Root, path string) ([]string, error)
	Values(root Root, path string) ([]Value, error)
	// DeleteTree removes path and everything below it.
	DeleteTree(root Root, path string) error
	DeleteValue(root Root, path, name string) error
	// SetString writes a string value, as an expandable string when expand
	// is set.
	SetString(root Root, path, name, data string, expand bool) error
}

// DefaultValue returns the default value of path, or "" when it is absent.
func DefaultValue(store ConfigStore, root Root, path string) string {
	vals, err := store.Values(root, path)
	if err != nil {
		return ""
	}
	for _, v := range vals {
		if v.Name == "" && v.Kind.IsString() {
			return v.Data
		}
	}
	return ""
}

// StringValue returns the named string value of path, or "" when absent.
func StringValue(store ConfigStore, root Root, path, name string) string {
	vals, err := store.Values(root, path)
	if err != nil {
		return ""
	}
	for _, v := range vals {
		if v.Kind.IsString() && equalFold(v.Name, name) {
			return v.Data
		}
	}
	return ""
}
