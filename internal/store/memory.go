package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type memoryDoc struct {
	data    []byte
	version uint64
}

// Memory is an in-process Store with the same CAS semantics as Badger,
// used by tests.
type Memory struct {
	mutex sync.Mutex
	docs  map[string]memoryDoc
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memoryDoc)}
}

func (m *Memory) Load(_ context.Context, name string) ([]byte, uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	doc, ok := m.docs[name]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return slices.Clone(doc.data), doc.version, nil
}

func (m *Memory) Save(_ context.Context, name string, data []byte, version uint64) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	current := uint64(0)
	if doc, ok := m.docs[name]; ok {
		current = doc.version
	}
	if current != version {
		return 0, ErrVersionMismatch
	}

	next := version + 1
	m.docs[name] = memoryDoc{data: slices.Clone(data), version: next}
	return next, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var names []string
	for name := range m.docs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
