package html

import (
	"livedom/dom/common"
	"livedom/dom/dirty"
)

// Widget groups child nodes into one unit without adding markup of its own.
// Its identity is never rendered; it is reported when something inside the
// widget changed so the display surface can re-run widget logic.
type Widget struct {
	id       common.NodeID
	children *dirty.List[Child]
}

// NewWidget creates a clean Widget holding children.
func NewWidget(children ...Child) *Widget {
	return &Widget{
		id:       common.NewNodeID(),
		children: dirty.NewList(children...),
	}
}

// ID returns the identity of the widget.
func (w *Widget) ID() common.NodeID {
	return w.id
}

// Children returns the children list.
func (w *Widget) Children() *dirty.List[Child] {
	return w.children
}

// Dirty reports whether the children list changed, directly or through a nested widget.
func (w *Widget) Dirty() bool {
	return childrenDirty(w.children)
}

// SubtreeDirty reports whether anything inside the widget changed.
func (w *Widget) SubtreeDirty() bool {
	return w.Dirty() || anySubtreeDirty(w.children)
}

// Clean clears the dirty state of the widget and all its descendants.
func (w *Widget) Clean() {
	w.children.Clean()
	cleanChildren(w.children)
}

// Append adds children to the end.
func (w *Widget) Append(children ...Child) {
	w.children.Append(children...)
}

// Remove removes child and reports whether it was found.
func (w *Widget) Remove(child Child) bool {
	return w.children.Remove(child)
}

// Clear removes all children.
func (w *Widget) Clear() {
	w.children.Clear()
}

// String renders the children as markup without node identities.
func (w *Widget) String() string {
	return renderList(w.children, false)
}

// Serialize renders the children as markup with node identities.
func (w *Widget) Serialize() string {
	return renderList(w.children, true)
}

// SerializeChildren is the same as Serialize; a widget has no markup of its own.
func (w *Widget) SerializeChildren() string {
	return w.Serialize()
}
