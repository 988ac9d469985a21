package common

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// NodeID is the stable identity of a tree node or widget.
// It is assigned once at construction and is used as the diff key.
type NodeID string

// String returns the string representation of the NodeID.
func (id NodeID) String() string {
	return string(id)
}

// ContextID identifies a logical caller (a scheduled unit or a view runtime).
// It is the key of the document lock queue.
type ContextID string

// String returns the string representation of the ContextID.
func (id ContextID) String() string {
	return string(id)
}

// NilContextID is the zero value for ContextID.
const NilContextID ContextID = ""

// NewContextID creates a new ContextID using UUID v7.
// It panics if the UUID cannot be created.
func NewContextID() ContextID {
	const retry = 3

	var lastErr error
	var id uuid.UUID
	for i := 0; i < retry; i++ {
		id, lastErr = uuid.NewV7()
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		panic(lastErr)
	}

	return ContextID(id.String())
}

// Namespaces used by GenerateID.
const (
	NamespaceNodes = "nodes"
	NamespaceViews = "views"
)

// IDGenerator hands out increasing decimal ids. It is safe for concurrent use.
type IDGenerator struct {
	mutex sync.Mutex
	value uint64
}

// Next returns the next id of the generator.
func (g *IDGenerator) Next() string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.value++
	return strconv.FormatUint(g.value, 10)
}

var (
	generators      = map[string]*IDGenerator{}
	generatorsMutex sync.Mutex
)

// GenerateID returns an id that is unique within the process for the given namespace.
func GenerateID(namespace string) string {
	generatorsMutex.Lock()
	g, ok := generators[namespace]
	if !ok {
		g = &IDGenerator{}
		generators[namespace] = g
	}
	generatorsMutex.Unlock()

	return g.Next()
}

// NewNodeID returns a fresh process-unique NodeID.
func NewNodeID() NodeID {
	return NodeID(GenerateID(NamespaceNodes))
}
