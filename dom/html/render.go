package html

import (
	"bytes"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livedom/dom/common"
	"livedom/dom/dirty"
)

// NodeIDAttribute carries the node identity in serialized markup.
const NodeIDAttribute = "data-node-id"

// voidElements never render children.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"keygen": true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

func (n *Node) build(parent *xhtml.Node, withIDs bool) {
	el := &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     n.tag,
		DataAtom: atom.Lookup([]byte(n.tag)),
		Attr:     n.renderAttributes(withIDs),
	}

	if !voidElements[n.tag] {
		for _, c := range n.children.Values() {
			c.build(el, withIDs)
		}
	}

	parent.AppendChild(el)
}

func (n *Node) renderAttributes(withIDs bool) []xhtml.Attribute {
	attrs := make([]xhtml.Attribute, 0, n.attributes.Len()+4)

	if withIDs {
		attrs = append(attrs, xhtml.Attribute{Key: NodeIDAttribute, Val: string(n.id)})
	}
	if n.idList.Len() > 0 {
		attrs = append(attrs, xhtml.Attribute{Key: "id", Val: n.idList.String()})
	}
	if n.classList.Len() > 0 {
		attrs = append(attrs, xhtml.Attribute{Key: "class", Val: n.classList.String()})
	}
	n.attributes.Each(func(key, value string) {
		if !reservedAttribute(key) {
			attrs = append(attrs, xhtml.Attribute{Key: key, Val: value})
		}
	})
	if n.style.Len() > 0 {
		attrs = append(attrs, xhtml.Attribute{Key: "style", Val: styleString(n.style)})
	}

	return attrs
}

func (w *Widget) build(parent *xhtml.Node, withIDs bool) {
	for _, c := range w.children.Values() {
		c.build(parent, withIDs)
	}
}

func (t Text) build(parent *xhtml.Node, _ bool) {
	parent.AppendChild(&xhtml.Node{
		Type: xhtml.TextNode,
		Data: string(t),
	})
}

// render writes child into a detached document node and renders that.
// Void elements never carry children, so rendering into a buffer cannot fail.
func render(child Child, withIDs bool) string {
	doc := &xhtml.Node{Type: xhtml.DocumentNode}
	child.build(doc, withIDs)
	return renderDocument(doc)
}

func renderList(children *dirty.List[Child], withIDs bool) string {
	doc := &xhtml.Node{Type: xhtml.DocumentNode}
	for _, c := range children.Values() {
		c.build(doc, withIDs)
	}
	return renderDocument(doc)
}

func renderDocument(doc *xhtml.Node) string {
	var buf bytes.Buffer
	_ = xhtml.Render(&buf, doc)
	return buf.String()
}

// Find searches the tree below root for the element with the given id.
// It returns the element and the widgets enclosing it, outermost first.
func Find(root Child, id common.NodeID) (Element, []*Widget) {
	var widgets []*Widget

	var walk func(c Child) Element
	walk = func(c Child) Element {
		el, ok := c.(Element)
		if !ok {
			return nil
		}
		if el.ID() == id {
			return el
		}

		w, isWidget := el.(*Widget)
		if isWidget {
			widgets = append(widgets, w)
		}
		for _, child := range el.Children().Values() {
			if found := walk(child); found != nil {
				return found
			}
		}
		if isWidget {
			widgets = widgets[:len(widgets)-1]
		}
		return nil
	}

	found := walk(root)
	if found == nil {
		return nil, nil
	}
	return found, append([]*Widget(nil), widgets...)
}
