package document

import (
	"livedom/dom/common"
)

// Kind names the variant of a Result.
type Kind string

const (
	// KindTree is the kind of FullTree.
	KindTree Kind = "tree"
	// KindLiteral is the kind of FullLiteral.
	KindLiteral Kind = "literal"
	// KindUpdate is the kind of Update.
	KindUpdate Kind = "update"
)

// Result is the output of a diff or serialization, consumed by the push channel.
// It is one of FullTree, FullLiteral or Update.
type Result interface {
	Kind() Kind
}

// FullTree is the complete markup of a node-graph root, with node identities embedded.
type FullTree struct {
	HTML string `json:"html"`
}

// Kind returns KindTree.
func (FullTree) Kind() Kind {
	return KindTree
}

// FullLiteral is a literal string root, sent verbatim.
type FullLiteral struct {
	Text string `json:"text"`
}

// Kind returns KindLiteral.
func (FullLiteral) Kind() Kind {
	return KindLiteral
}

// Change is the patch record of one node in a diff pass.
// Attributes is set when the id list, class list, attributes or style of the
// node changed and carries the complete merged attribute set. InnerHTML is set
// when the children changed and carries the re-rendered markup of the children.
type Change struct {
	NodeID     common.NodeID     `json:"node_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	InnerHTML  *string           `json:"inner_html,omitempty"`
}

// Update is the incremental result of a diff pass.
type Update struct {
	Changes []Change `json:"changes"`
	// ChangedWidgetIDs lists the widgets that enclose a changed node,
	// deduplicated, outermost first.
	ChangedWidgetIDs []common.NodeID `json:"changed_widget_ids"`
}

// Kind returns KindUpdate.
func (Update) Kind() Kind {
	return KindUpdate
}

// Empty reports whether the update carries no change.
func (u Update) Empty() bool {
	return len(u.Changes) == 0 && len(u.ChangedWidgetIDs) == 0
}
