package recording

import (
	"fmt"
	"sync"
)

// ConstantPool interns strings with stable int32 ids. Ids are assigned in
// insertion order and never change, so a pool written in segments can be
// rebuilt by concatenating the segments.
type ConstantPool struct {
	mu      sync.RWMutex
	strings []string
	ids     map[string]int32
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{ids: make(map[string]int32)}
}

// Intern returns the id of s, adding it if it is new.
func (p *ConstantPool) Intern(s string) int32 {
	p.mu.RLock()
	id, ok := p.ids[s]
	p.mu.RUnlock()
	if ok {
		return id
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.ids[s]; ok {
		return id
	}
	id = int32(len(p.strings))
	p.strings = append(p.strings, s)
	p.ids[s] = id
	return id
}

// Lookup returns the id of s without interning it.
func (p *ConstantPool) Lookup(s string) (int32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.ids[s]
	return id, ok
}

// String resolves an id.
func (p *ConstantPool) String(id int32) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id < 0 || int(id) >= len(p.strings) {
		return "", fmt.Errorf("constant pool reference %d out of range [0, %d)", id, len(p.strings))
	}
	return p.strings[id], nil
}

// Len returns the number of interned strings.
func (p *ConstantPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.strings)
}

// Since returns a copy of the strings interned after the first n.
func (p *ConstantPool) Since(n int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n >= len(p.strings) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, len(p.strings)-n)
	copy(out, p.strings[n:])
	return out
}
