package platform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// Registry is the native ConfigStore. Keys are always opened in the 64-bit
// view; 32-bit entries are addressed explicitly through WOW6432Node.
type Registry struct{}

func hive(root Root) (registry.Key, error) {
	switch root {
	case LocalMachine:
		return registry.LOCAL_MACHINE, nil
	case CurrentUser:
		return registry.CURRENT_USER, nil
	case ClassesRoot:
		return registry.CLASSES_ROOT, nil
	case Users:
		return registry.USERS, nil
	}
	return 0, fmt.Errorf("unknown root %v", root)
}

func openKey(root Root, path string, access uint32) (registry.Key, error) {
	h, err := hive(root)
	if err != nil {
		return 0, err
	}
	k, err := registry.OpenKey(h, path, access|registry.WOW64_64KEY)
	if err != nil {
		return 0, fmt.Errorf(`open %s\%s: %w`, root, path, classify(err))
	}
	return k, nil
}

// SubKeys lists the immediate child key names of path.
func (Registry) SubKeys(root Root, path string) ([]string, error) {
	k, err := openKey(root, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, classify(err)
	}
	return names, nil
}

// Values reads every value of path. Non-string values are rendered in
// decimal or left empty for binary data.
func (Registry) Values(root Root, path string) ([]Value, error) {
	k, err := openKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Value, 0, len(names))
	for _, name := range names {
		_, typ, err := k.GetValue(name, nil)
		if err != nil && !errors.Is(err, registry.ErrShortBuffer) {
			continue
		}
		v := Value{Name: name}
		switch typ {
		case registry.SZ, registry.EXPAND_SZ:
			v.Kind = KindString
			if typ == registry.EXPAND_SZ {
				v.Kind = KindExpandString
			}
			v.Data, _, _ = k.GetStringValue(name)
		case registry.MULTI_SZ:
			v.Kind = KindMultiString
			items, _, _ := k.GetStringsValue(name)
			v.Data = strings.Join(items, ";")
		case registry.DWORD, registry.QWORD:
			v.Kind = KindDWord
			if typ == registry.QWORD {
				v.Kind = KindQWord
			}
			n, _, _ := k.GetIntegerValue(name)
			v.Data = strconv.FormatUint(n, 10)
		case registry.BINARY:
			v.Kind = KindBinary
		default:
			v.Kind = KindOther
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteTree removes path and all of its subkeys, deepest first, using an
// explicit stack.
func (r Registry) DeleteTree(root Root, path string) error {
	h, err := hive(root)
	if err != nil {
		return err
	}
	type frame struct {
		path     string
		expanded bool
	}
	stack := []frame{{path: path}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if !top.expanded {
			top.expanded = true
			children, err := r.SubKeys(root, top.path)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					stack = stack[:len(stack)-1]
					continue
				}
				return err
			}
			parent := top.path
			for _, c := range children {
				stack = append(stack, frame{path: parent + `\` + c})
			}
			continue
		}
		p := top.path
		stack = stack[:len(stack)-1]
		if err := registry.DeleteKey(h, p); err != nil {
			if err = classify(err); !errors.Is(err, ErrNotFound) {
				return fmt.Errorf(`delete %s\%s: %w`, root, p, err)
			}
		}
	}
	return nil
}

// DeleteValue removes one value.
func (Registry) DeleteValue(root Root, path, name string) error {
	k, err := openKey(root, path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	if err := k.DeleteValue(name); err != nil {
		return fmt.Errorf(`delete value %s\%s\%s: %w`, root, path, name, classify(err))
	}
	return nil
}

// SetString writes name as REG_SZ or REG_EXPAND_SZ.
func (Registry) SetString(root Root, path, name, data string, expand bool) error {
	k, err := openKey(root, path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	if expand {
		err = k.SetExpandStringValue(name, data)
	} else {
		err = k.SetStringValue(name, data)
	}
	if err != nil {
		return fmt.Errorf(`set %s\%s\%s: %w`, root, path, name, classify(err))
	}
	return nil
}
