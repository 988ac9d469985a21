// Package document owns the root of a server-side document tree, computes
// the changes made to it since the last pass and serializes the lock that
// application logic takes before mutating it.
package document

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"livedom/dom/common"
	"livedom/dom/html"
)

// Options configures a Document.
type Options struct {
	// PassThrough turns locking into a no-op, for documents that are only
	// ever touched from one context.
	PassThrough bool

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		PassThrough: false,
		Logger:      nil,
	}
}

// Document holds at most one root value: a node graph (*html.Node or
// *html.Widget) or a literal html.Text.
type Document struct {
	mutex  sync.Mutex
	root   html.Child
	locks  *LockManager
	logger *zap.Logger
}

// NewDocument creates an empty Document.
func NewDocument(opts *Options) *Document {
	if opts == nil {
		opts = NewOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Document{
		locks:  NewLockManager(opts.PassThrough, logger),
		logger: logger,
	}
}

// Locks returns the lock table of the document.
func (d *Document) Locks() *LockManager {
	return d.locks
}

// Lock acquires the document lock for cid. The returned Guard must be released.
func (d *Document) Lock(ctx context.Context, cid common.ContextID) (*Guard, error) {
	if err := d.locks.Acquire(ctx, cid); err != nil {
		return nil, err
	}
	return &Guard{manager: d.locks, context: cid}, nil
}

// WithLock runs fn while holding the document lock for cid.
func (d *Document) WithLock(ctx context.Context, cid common.ContextID, fn func() error) error {
	guard, err := d.Lock(ctx, cid)
	if err != nil {
		return err
	}
	defer guard.Release()

	return fn()
}

// Root returns the current root, or nil. The node graph behind it may only
// be read or mutated while holding the document lock.
func (d *Document) Root() html.Child {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.root
}

// Apply installs value as the root and reports what the display surface has
// to do. It returns nil when nothing changed:
//   - the same literal text as the current root is a no-op;
//   - the current node graph again is diffed in place;
//   - anything else replaces the root and is returned in full.
//
// Applying nil removes the root and returns an empty FullLiteral.
func (d *Document) Apply(value html.Child) Result {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if value == nil {
		if d.root == nil {
			return nil
		}
		d.root = nil
		return FullLiteral{}
	}

	if text, ok := value.(html.Text); ok {
		if current, ok := d.root.(html.Text); ok && current == text {
			return nil
		}
		d.root = text
		d.logger.Debug("Document root replaced by text")
		return FullLiteral{Text: string(text)}
	}

	el, ok := value.(html.Element)
	if !ok {
		return nil
	}

	if d.root == value {
		if !el.SubtreeDirty() {
			return nil
		}
		return d.diff()
	}

	d.root = value
	el.Clean()
	d.logger.Debug("Document root replaced", zap.String("root", el.ID().String()))
	return FullTree{HTML: el.Serialize()}
}

// Diff runs one diff pass over the current node-graph root and clears all
// dirty flags. A second pass without mutations in between returns an empty Update.
// A widget root whose own children changed has no element to patch and is
// returned as a FullTree.
func (d *Document) Diff() Result {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.root.(html.Element); !ok {
		return Update{Changes: []Change{}, ChangedWidgetIDs: []common.NodeID{}}
	}
	return d.diff()
}

// Serialize returns the full Result of the current root.
func (d *Document) Serialize() Result {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch root := d.root.(type) {
	case html.Text:
		return FullLiteral{Text: string(root)}
	case html.Element:
		return FullTree{HTML: root.Serialize()}
	default:
		return FullLiteral{}
	}
}

// Find returns the element with the given id below the root, with its
// enclosing widgets outermost first. The walk runs under the document lock
// for cid, so it never observes a graph another context is mutating.
// A missing element is reported as nil without an error.
func (d *Document) Find(ctx context.Context, cid common.ContextID, id common.NodeID) (html.Element, []*html.Widget, error) {
	var (
		el      html.Element
		widgets []*html.Widget
	)
	err := d.WithLock(ctx, cid, func() error {
		root := d.Root()
		if root == nil {
			return nil
		}
		el, widgets = html.Find(root, id)
		return nil
	})
	return el, widgets, err
}

func (d *Document) diff() Result {
	root := d.root.(html.Element)

	if w, ok := root.(*html.Widget); ok && w.Dirty() {
		w.Clean()
		return FullTree{HTML: w.Serialize()}
	}

	p := &diffPass{seen: map[common.NodeID]bool{}}
	p.walk(root, nil, true)
	root.Clean()

	update := p.update()
	d.logger.Debug("Document diffed",
		zap.Int("changes", len(update.Changes)),
		zap.Int("widgets", len(update.ChangedWidgetIDs)))
	return update
}

type widgetHit struct {
	id    common.NodeID
	depth int
}

// diffPass collects the changes of one traversal.
type diffPass struct {
	changes []Change
	widgets []widgetHit
	seen    map[common.NodeID]bool
}

// walk visits c depth-first. path holds the enclosing widgets. emit is false
// below a node whose children are re-rendered, where only widgets are collected.
func (p *diffPass) walk(c html.Child, path []*html.Widget, emit bool) {
	switch v := c.(type) {
	case *html.Node:
		if !v.SubtreeDirty() {
			return
		}

		if v.Dirty() {
			p.markInnermost(path)
		}

		if emit && v.Dirty() {
			change := Change{NodeID: v.ID()}
			if v.AttributesDirty() {
				change.Attributes = v.MergedAttributes()
			}
			if v.ChildrenDirty() {
				inner := v.SerializeChildren()
				change.InnerHTML = &inner
				emit = false
			}
			p.changes = append(p.changes, change)
		}

		for _, child := range v.Children().Values() {
			p.walk(child, path, emit)
		}

	case *html.Widget:
		if !v.SubtreeDirty() {
			return
		}

		path = append(path[:len(path):len(path)], v)
		if v.Dirty() {
			p.markInnermost(path)
		}

		for _, child := range v.Children().Values() {
			p.walk(child, path, emit)
		}
	}
}

func (p *diffPass) markInnermost(path []*html.Widget) {
	if len(path) == 0 {
		return
	}

	w := path[len(path)-1]
	if p.seen[w.ID()] {
		return
	}
	p.seen[w.ID()] = true
	p.widgets = append(p.widgets, widgetHit{id: w.ID(), depth: len(path)})
}

func (p *diffPass) update() Update {
	sort.SliceStable(p.widgets, func(i, j int) bool {
		return p.widgets[i].depth < p.widgets[j].depth
	})

	ids := make([]common.NodeID, 0, len(p.widgets))
	for _, w := range p.widgets {
		ids = append(ids, w.id)
	}

	changes := p.changes
	if changes == nil {
		changes = []Change{}
	}

	return Update{Changes: changes, ChangedWidgetIDs: ids}
}
