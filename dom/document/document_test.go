package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livedom/dom/common"
	"livedom/dom/html"
)

func newTestDocument(t *testing.T) *Document {
	opts := NewOptions()
	opts.Logger = zaptest.NewLogger(t)
	return NewDocument(opts)
}

func TestApply_NewTreeReturnsFullTree(t *testing.T) {
	doc := newTestDocument(t)
	root := html.NewNode("div", html.Children(html.Text("hello")))

	result := doc.Apply(root)
	require.NotNil(t, result)
	assert.Equal(t, KindTree, result.Kind())

	full := result.(FullTree)
	assert.Contains(t, full.HTML, root.ID().String())
	assert.Contains(t, full.HTML, "hello")
}

func TestApply_SameReferenceWithoutMutationIsNoop(t *testing.T) {
	doc := newTestDocument(t)
	root := html.NewNode("div", html.Children(html.NewNode("span")))

	require.NotNil(t, doc.Apply(root))

	// twice in a row without mutations
	assert.Nil(t, doc.Apply(root))
	assert.Nil(t, doc.Apply(root))
}

func TestApply_SameLiteralIsNoop(t *testing.T) {
	doc := newTestDocument(t)

	result := doc.Apply(html.Text("hello"))
	assert.Equal(t, FullLiteral{Text: "hello"}, result)
	assert.Nil(t, doc.Apply(html.Text("hello")))
	assert.Equal(t, FullLiteral{Text: "bye"}, doc.Apply(html.Text("bye")))
}

func TestApply_StyleChangeEmitsSingleAttributesPatch(t *testing.T) {
	doc := newTestDocument(t)

	children := []html.Child{
		html.NewNode("p"),
		html.NewNode("p", html.Style("margin", "0")),
		html.NewNode("p"),
	}
	root := html.NewNode("div", html.Children(children...))
	require.NotNil(t, doc.Apply(root))

	target := children[1].(*html.Node)
	target.Style().Set("color", "red")

	result := doc.Apply(root)
	require.NotNil(t, result)
	require.Equal(t, KindUpdate, result.Kind())

	update := result.(Update)
	require.Len(t, update.Changes, 1)
	change := update.Changes[0]
	assert.Equal(t, target.ID(), change.NodeID)
	assert.Nil(t, change.InnerHTML)
	assert.Equal(t, "margin: 0; color: red;", change.Attributes["style"])
	assert.Empty(t, update.ChangedWidgetIDs)

	// the pass cleaned the tree
	assert.Nil(t, doc.Apply(root))
}

func TestApply_ReorderedStyleEmitsAttributesPatch(t *testing.T) {
	doc := newTestDocument(t)
	root := html.NewNode("div", html.Style("margin", "0"), html.Style("color", "red"))
	require.NotNil(t, doc.Apply(root))

	root.Style().Delete("margin")
	root.Style().Set("margin", "0")

	result := doc.Apply(root)
	require.NotNil(t, result)
	update := result.(Update)
	require.Len(t, update.Changes, 1)
	assert.Equal(t, "color: red; margin: 0;", update.Changes[0].Attributes["style"])
	assert.Contains(t, root.String(), `style="color: red; margin: 0;"`)
}

func TestApply_WidgetChildChangeReportsWidgetOnce(t *testing.T) {
	doc := newTestDocument(t)

	first := html.NewNode("span")
	second := html.NewNode("span")
	widget := html.NewWidget(first, second)
	root := html.NewNode("div", html.Children(widget))
	require.NotNil(t, doc.Apply(root))

	first.Attributes().Set("title", "a")
	second.Attributes().Set("title", "b")

	update, ok := doc.Apply(root).(Update)
	require.True(t, ok)
	assert.Equal(t, []common.NodeID{widget.ID()}, update.ChangedWidgetIDs)
	assert.Len(t, update.Changes, 2)
}

func TestApply_NestedWidgetsOutermostFirst(t *testing.T) {
	doc := newTestDocument(t)

	leaf := html.NewNode("b")
	inner := html.NewWidget(leaf)
	middle := html.NewNode("p", html.Children(inner))
	outer := html.NewWidget(middle)
	root := html.NewNode("div", html.Children(outer))
	require.NotNil(t, doc.Apply(root))

	leaf.ClassList().Add("x")
	middle.Attributes().Set("title", "y")

	update := doc.Apply(root).(Update)
	assert.Equal(t, []common.NodeID{outer.ID(), inner.ID()}, update.ChangedWidgetIDs)
}

func TestApply_ChildrenChangeReplacesSubtreeOnce(t *testing.T) {
	doc := newTestDocument(t)

	grandchild := html.NewNode("i")
	child := html.NewNode("p", html.Children(grandchild))
	root := html.NewNode("div", html.Children(child))
	require.NotNil(t, doc.Apply(root))

	child.Append(html.Text("more"))
	grandchild.ClassList().Add("inside")

	update := doc.Apply(root).(Update)
	require.Len(t, update.Changes, 1)

	change := update.Changes[0]
	assert.Equal(t, child.ID(), change.NodeID)
	require.NotNil(t, change.InnerHTML)
	assert.Contains(t, *change.InnerHTML, `class="inside"`)
	assert.Contains(t, *change.InnerHTML, "more")
	assert.Nil(t, change.Attributes)
}

func TestApply_AttributesAndChildrenInOneChange(t *testing.T) {
	doc := newTestDocument(t)
	root := html.NewNode("div")
	require.NotNil(t, doc.Apply(root))

	root.ClassList().Add("full")
	root.SetText("x")

	update := doc.Apply(root).(Update)
	require.Len(t, update.Changes, 1)
	assert.Equal(t, "full", update.Changes[0].Attributes["class"])
	require.NotNil(t, update.Changes[0].InnerHTML)
	assert.Equal(t, "x", *update.Changes[0].InnerHTML)
}

func TestApply_LiteralDiscardsOldTree(t *testing.T) {
	doc := newTestDocument(t)
	root := html.NewNode("div")
	require.NotNil(t, doc.Apply(root))

	root.Attributes().Set("title", "ignored")

	result := doc.Apply(html.Text("plain"))
	assert.Equal(t, FullLiteral{Text: "plain"}, result)
	assert.Equal(t, FullLiteral{Text: "plain"}, doc.Serialize())

	// the old graph is a new value again
	assert.Equal(t, KindTree, doc.Apply(root).Kind())
	assert.False(t, root.SubtreeDirty())
}

func TestDiff_Idempotent(t *testing.T) {
	doc := newTestDocument(t)
	child := html.NewNode("span")
	root := html.NewNode("div", html.Children(child))
	require.NotNil(t, doc.Apply(root))

	child.Style().Set("color", "blue")

	first := doc.Diff().(Update)
	assert.Len(t, first.Changes, 1)

	second := doc.Diff().(Update)
	assert.True(t, second.Empty())
}

func TestDiff_WidgetRootFallsBackToFullTree(t *testing.T) {
	doc := newTestDocument(t)
	widget := html.NewWidget(html.NewNode("p"))
	require.NotNil(t, doc.Apply(widget))

	widget.Append(html.NewNode("p"))

	result := doc.Apply(widget)
	require.NotNil(t, result)
	assert.Equal(t, KindTree, result.Kind())
	assert.False(t, widget.SubtreeDirty())
}

func TestDocument_SerializeAndFind(t *testing.T) {
	doc := newTestDocument(t)
	assert.Equal(t, FullLiteral{}, doc.Serialize())

	target := html.NewNode("span")
	widget := html.NewWidget(target)
	root := html.NewNode("div", html.Children(widget))
	doc.Apply(root)

	full, ok := doc.Serialize().(FullTree)
	require.True(t, ok)
	assert.Contains(t, full.HTML, target.ID().String())

	el, widgets, err := doc.Find(context.Background(), common.NewContextID(), target.ID())
	require.NoError(t, err)
	assert.Same(t, target, el)
	assert.Equal(t, []*html.Widget{widget}, widgets)

	el, widgets, err = doc.Find(context.Background(), common.NewContextID(), "missing")
	require.NoError(t, err)
	assert.Nil(t, el)
	assert.Nil(t, widgets)

	assert.Equal(t, FullLiteral{}, doc.Apply(nil))
	assert.Nil(t, doc.Apply(nil))
	assert.Nil(t, doc.Root())
}

func TestDocument_FindWaitsForMutatingContext(t *testing.T) {
	doc := newTestDocument(t)

	target := html.NewNode("b")
	list := html.NewNode("ul")
	root := html.NewNode("div", html.Children(list, target))
	doc.Apply(root)

	writer := common.NewContextID()
	reader := common.NewContextID()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			err := doc.WithLock(context.Background(), writer, func() error {
				list.Append(html.NewNode("li"))
				root.Append(html.NewNode("i"))
				doc.Apply(root)
				return nil
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			el, _, err := doc.Find(context.Background(), reader, target.ID())
			assert.NoError(t, err)
			assert.Same(t, target, el)
		}
	}()
	wg.Wait()
}

func TestDocument_FindReentrantAndCancelled(t *testing.T) {
	doc := newTestDocument(t)
	target := html.NewNode("p")
	doc.Apply(html.NewNode("div", html.Children(target)))

	owner := common.NewContextID()
	guard, err := doc.Lock(context.Background(), owner)
	require.NoError(t, err)

	// the owner finds nodes while holding the lock
	el, _, err := doc.Find(context.Background(), owner, target.ID())
	require.NoError(t, err)
	assert.Same(t, target, el)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = doc.Find(ctx, common.NewContextID(), target.ID())
	assert.ErrorAs(t, err, &common.ErrStopped{})

	guard.Release()
	assert.Equal(t, 0, doc.Locks().Len())
}
