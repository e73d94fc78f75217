// Package platformtest provides in-memory and temp-directory backed
// implementations of the platform capabilities for tests.
package platformtest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
)

type node struct {
	name     string
	children map[string]*node
	values   map[string]platform.Value
}

func newNode(name string) *node {
	return &node{
		name:     name,
		children: make(map[string]*node),
		values:   make(map[string]platform.Value),
	}
}

// MemStore is an in-memory, case-insensitive ConfigStore.
type MemStore struct {
	mu    sync.Mutex
	roots map[platform.Root]*node

	// DeleteErr, when set, is returned by DeleteTree for matching paths.
	DeleteErr map[string]error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{roots: make(map[platform.Root]*node)}
}

func split(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, `\`) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func (s *MemStore) lookup(root platform.Root, path string, create bool) *node {
	n, ok := s.roots[root]
	if !ok {
		if !create {
			return nil
		}
		n = newNode(root.String())
		s.roots[root] = n
	}
	for _, part := range split(path) {
		child, ok := n.children[strings.ToLower(part)]
		if !ok {
			if !create {
				return nil
			}
			child = newNode(part)
			n.children[strings.ToLower(part)] = child
		}
		n = child
	}
	return n
}

// AddKey creates path and any missing parents.
func (s *MemStore) AddKey(root platform.Root, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup(root, path, true)
}

// Put creates path if needed and stores a string value.
func (s *MemStore) Put(root platform.Root, path, name, data string) {
	s.PutValue(root, path, platform.Value{Name: name, Kind: platform.KindString, Data: data})
}

// PutValue creates path if needed and stores v.
func (s *MemStore) PutValue(root platform.Root, path string, v platform.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, true)
	n.values[strings.ToLower(v.Name)] = v
}

// HasKey reports whether path exists.
func (s *MemStore) HasKey(root platform.Root, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(root, path, false) != nil
}

// Get returns the named value of path.
func (s *MemStore) Get(root platform.Root, path, name string) (platform.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, false)
	if n == nil {
		return platform.Value{}, false
	}
	v, ok := n.values[strings.ToLower(name)]
	return v, ok
}

func notFound(root platform.Root, path string) error {
	return fmt.Errorf(`%s\%s: %w`, root, path, platform.ErrNotFound)
}

func (s *MemStore) SubKeys(root platform.Root, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, false)
	if n == nil {
		return nil, notFound(root, path)
	}
	out := make([]string, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c.name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) Values(root platform.Root, path string) ([]platform.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, false)
	if n == nil {
		return nil, notFound(root, path)
	}
	out := make([]platform.Value, 0, len(n.values))
	for _, v := range n.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) DeleteTree(root platform.Root, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.DeleteErr[strings.ToLower(path)]; ok {
		return err
	}
	parts := split(path)
	if len(parts) == 0 {
		return fmt.Errorf("refusing to delete hive root %s", root)
	}
	parent := s.lookup(root, strings.Join(parts[:len(parts)-1], `\`), false)
	leaf := strings.ToLower(parts[len(parts)-1])
	if parent == nil || parent.children[leaf] == nil {
		return notFound(root, path)
	}
	delete(parent.children, leaf)
	return nil
}

func (s *MemStore) DeleteValue(root platform.Root, path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, false)
	if n == nil {
		return notFound(root, path)
	}
	if _, ok := n.values[strings.ToLower(name)]; !ok {
		return notFound(root, path+`\`+name)
	}
	delete(n.values, strings.ToLower(name))
	return nil
}

func (s *MemStore) SetString(root platform.Root, path, name, data string, expand bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(root, path, false)
	if n == nil {
		return notFound(root, path)
	}
	kind := platform.KindString
	if expand {
		kind = platform.KindExpandString
	}
	n.values[strings.ToLower(name)] = platform.Value{Name: name, Kind: kind, Data: data}
	return nil
}
