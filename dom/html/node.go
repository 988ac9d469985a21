// Package html implements the server-side document tree: identified element
// nodes, identity-less widgets grouping child nodes, and literal text.
//
// Every mutable part of a Node lives in a dirty container, so a Document can
// find out what changed since the last diff pass without keeping a copy of
// the previous tree.
package html

import (
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"

	"livedom/dom/common"
	"livedom/dom/dirty"
)

// Child is an entry of a children list: *Node, *Widget or Text.
type Child interface {
	build(parent *xhtml.Node, withIDs bool)
}

// Element is the capability set shared by *Node and *Widget.
type Element interface {
	Child

	// ID returns the stable identity of the element.
	ID() common.NodeID
	// Children returns the children list.
	Children() *dirty.List[Child]
	// Dirty reports whether the element itself changed since the last Clean.
	Dirty() bool
	// SubtreeDirty reports whether the element or any descendant changed.
	SubtreeDirty() bool
	// Clean clears the dirty state of the element and all its descendants.
	Clean()
	// String renders the element as markup without node identities.
	String() string
	// Serialize renders the element as markup with node identities.
	Serialize() string
	// SerializeChildren renders only the children, with node identities.
	SerializeChildren() string
}

// Text is a literal text child. It is escaped when rendered inside a tree.
type Text string

// Node is a labeled element with an identity, id and class lists,
// attributes, an inline style and an ordered list of children.
type Node struct {
	id  common.NodeID
	tag string

	idList     *dirty.Set
	classList  *dirty.Set
	attributes *dirty.Map[string, string]
	style      *dirty.Map[string, string]
	children   *dirty.List[Child]
}

// Option configures a Node at construction.
type Option func(n *Node)

// Attr sets a construction attribute.
// Underscores in key become hyphens and a leading one is dropped, so "_class"
// means "class" and "data_role" means "data-role". The keys "id", "class" and
// "style" are unpacked into the id list, class list and style map.
func Attr(key, value string) Option {
	return func(n *Node) {
		n.setConstructionAttr(key, value)
	}
}

// Attrs sets several construction attributes, in key order. See Attr.
func Attrs(attrs map[string]string) Option {
	return func(n *Node) {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.setConstructionAttr(k, attrs[k])
		}
	}
}

// ID adds values to the id list.
func ID(ids ...string) Option {
	return func(n *Node) {
		n.idList.Add(ids...)
	}
}

// Class adds values to the class list.
func Class(classes ...string) Option {
	return func(n *Node) {
		n.classList.Add(classes...)
	}
}

// Style sets one inline style property.
func Style(key, value string) Option {
	return func(n *Node) {
		n.style.Set(key, value)
	}
}

// Children appends children.
func Children(children ...Child) Option {
	return func(n *Node) {
		n.children.Append(children...)
	}
}

// NewNode creates a clean Node with a fresh identity.
func NewNode(tag string, opts ...Option) *Node {
	n := &Node{
		id:         common.NewNodeID(),
		tag:        tag,
		idList:     dirty.NewSet(),
		classList:  dirty.NewSet(),
		attributes: dirty.NewMap[string, string](),
		style:      dirty.NewMap[string, string](),
		children:   dirty.NewList[Child](),
	}

	for _, opt := range opts {
		opt(n)
	}

	n.cleanSelf()
	return n
}

func (n *Node) setConstructionAttr(key, value string) {
	if strings.Contains(key, "_") {
		key = strings.TrimPrefix(strings.ReplaceAll(key, "_", "-"), "-")
	}

	switch key {
	case "id":
		n.idList.Add(strings.Fields(value)...)
	case "class":
		n.classList.Add(strings.Fields(value)...)
	case "style":
		for _, decl := range parseStyle(value) {
			n.style.Set(decl[0], decl[1])
		}
	default:
		n.attributes.Set(key, value)
	}
}

// reservedAttribute reports whether key is rendered from a dedicated field
// of the node instead of the generic attribute map.
func reservedAttribute(key string) bool {
	switch key {
	case "id", "class", "style", NodeIDAttribute:
		return true
	}
	return false
}

// SetAttribute sets an attribute by its rendered name. "id" and "class"
// replace the id and class lists, "style" replaces the inline style, and the
// node identity attribute cannot be set. Everything else goes to the generic
// attributes.
func (n *Node) SetAttribute(key, value string) {
	switch key {
	case "id":
		n.idList.Replace(strings.Fields(value)...)
	case "class":
		n.classList.Replace(strings.Fields(value)...)
	case "style":
		n.style.Clear()
		for _, decl := range parseStyle(value) {
			n.style.Set(decl[0], decl[1])
		}
	case NodeIDAttribute:
	default:
		n.attributes.Set(key, value)
	}
}

// RemoveAttribute removes an attribute by its rendered name, emptying the
// id list, class list or style for the reserved names.
func (n *Node) RemoveAttribute(key string) {
	switch key {
	case "id":
		n.idList.Clear()
	case "class":
		n.classList.Clear()
	case "style":
		n.style.Clear()
	case NodeIDAttribute:
	default:
		n.attributes.Delete(key)
	}
}

// ID returns the identity of the node.
func (n *Node) ID() common.NodeID {
	return n.id
}

// Tag returns the tag name.
func (n *Node) Tag() string {
	return n.tag
}

// IDList returns the id list.
func (n *Node) IDList() *dirty.Set {
	return n.idList
}

// ClassList returns the class list.
func (n *Node) ClassList() *dirty.Set {
	return n.classList
}

// Attributes returns the generic attributes. An empty value renders as a
// boolean attribute. The keys "id", "class", "style" and data-node-id are
// never rendered from this map; use SetAttribute for those.
func (n *Node) Attributes() *dirty.Map[string, string] {
	return n.attributes
}

// Style returns the inline style.
func (n *Node) Style() *dirty.Map[string, string] {
	return n.style
}

// Children returns the children list.
func (n *Node) Children() *dirty.List[Child] {
	return n.children
}

// AttributesDirty reports whether the id list, class list, attributes or style changed.
func (n *Node) AttributesDirty() bool {
	return n.idList.Dirty() ||
		n.classList.Dirty() ||
		n.attributes.Dirty() ||
		n.style.Dirty()
}

// ChildrenDirty reports whether the markup of the children has to be re-rendered:
// the children list changed, or the list of a widget rendered directly into this node did.
func (n *Node) ChildrenDirty() bool {
	return childrenDirty(n.children)
}

// Dirty reports whether the node itself changed.
func (n *Node) Dirty() bool {
	return n.AttributesDirty() || n.ChildrenDirty()
}

// SubtreeDirty reports whether the node or any descendant changed.
func (n *Node) SubtreeDirty() bool {
	return n.Dirty() || anySubtreeDirty(n.children)
}

// Clean clears the dirty state of the node and all its descendants.
func (n *Node) Clean() {
	n.cleanSelf()
	cleanChildren(n.children)
}

func (n *Node) cleanSelf() {
	n.idList.Clean()
	n.classList.Clean()
	n.attributes.Clean()
	n.style.Clean()
	n.children.Clean()
}

// MergedAttributes returns the complete attribute set of the node as it would
// be rendered, with the id list, class list and style folded in. id, class and
// style are present whenever they are non-empty or changed since the last
// Clean, so an emptied list shows up as an empty value.
func (n *Node) MergedAttributes() map[string]string {
	merged := make(map[string]string, n.attributes.Len()+3)
	n.attributes.Each(func(key, value string) {
		if !reservedAttribute(key) {
			merged[key] = value
		}
	})

	if n.idList.Len() > 0 || n.idList.Dirty() {
		merged["id"] = n.idList.String()
	}
	if n.classList.Len() > 0 || n.classList.Dirty() {
		merged["class"] = n.classList.String()
	}
	if n.style.Len() > 0 || n.style.Dirty() {
		merged["style"] = styleString(n.style)
	}

	return merged
}

// Append adds children to the end.
func (n *Node) Append(children ...Child) {
	n.children.Append(children...)
}

// Insert adds children before index i.
func (n *Node) Insert(i int, children ...Child) {
	n.children.Insert(i, children...)
}

// Remove removes child and reports whether it was found.
func (n *Node) Remove(child Child) bool {
	return n.children.Remove(child)
}

// Clear removes all children.
func (n *Node) Clear() {
	n.children.Clear()
}

// SetText replaces all children with a single text child.
func (n *Node) SetText(text string) {
	n.children.Replace(Text(text))
}

// TextContent returns the text of all descendant Text children.
func (n *Node) TextContent() string {
	var b strings.Builder
	writeText(&b, n.children)
	return b.String()
}

// Hide sets display to none.
func (n *Node) Hide() {
	n.style.Set("display", "none")
}

// Show drops a display property set by Hide.
func (n *Node) Show() {
	n.style.Delete("display")
}

// String renders the node as markup without node identities.
func (n *Node) String() string {
	return render(n, false)
}

// Serialize renders the node as markup with node identities.
func (n *Node) Serialize() string {
	return render(n, true)
}

// SerializeChildren renders only the children, with node identities.
func (n *Node) SerializeChildren() string {
	return renderList(n.children, true)
}

func parseStyle(value string) [][2]string {
	var decls [][2]string
	for _, part := range strings.Split(value, ";") {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		decls = append(decls, [2]string{key, strings.TrimSpace(val)})
	}
	return decls
}

func styleString(style *dirty.Map[string, string]) string {
	parts := make([]string, 0, style.Len())
	style.Each(func(key, value string) {
		parts = append(parts, key+": "+value+";")
	})
	return strings.Join(parts, " ")
}

func childrenDirty(children *dirty.List[Child]) bool {
	if children.Dirty() {
		return true
	}
	for _, c := range children.Values() {
		if w, ok := c.(*Widget); ok && w.Dirty() {
			return true
		}
	}
	return false
}

func anySubtreeDirty(children *dirty.List[Child]) bool {
	for _, c := range children.Values() {
		if el, ok := c.(Element); ok && el.SubtreeDirty() {
			return true
		}
	}
	return false
}

func cleanChildren(children *dirty.List[Child]) {
	for _, c := range children.Values() {
		if el, ok := c.(Element); ok {
			el.Clean()
		}
	}
}

func writeText(b *strings.Builder, children *dirty.List[Child]) {
	for _, c := range children.Values() {
		switch v := c.(type) {
		case Text:
			b.WriteString(string(v))
		case Element:
			writeText(b, v.Children())
		}
	}
}
