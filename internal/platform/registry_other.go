//go:build !windows

package platform

// Registry is only available on Windows.
type Registry struct{}

func (Registry) SubKeys(Root, string) ([]string, error) { return nil, ErrUnsupported }

func (Registry) Values(Root, string) ([]Value, error) { return nil, ErrUnsupported }

func (Registry) DeleteTree(Root, string) error { return ErrUnsupported }

func (Registry) DeleteValue(Root, string, string) error { return ErrUnsupported }

func (Registry) SetString(Root, string, string, string, bool) error { return ErrUnsupported }
