package amazon

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ListingNode is the capability surface the field extractor needs from one
// rendered search-result entry. Selectors address the node's subtree; a
// miss is reported through the bool, never as an error. Decoupling
// extraction from the browser substrate lets tests drive it with an
// in-memory fake.
type ListingNode interface {
	// Text returns the inner text of the first descendant matching the
	// selector.
	Text(selector string) (string, bool)

	// Attribute returns the named attribute of the first descendant
	// matching the selector.
	Attribute(selector, name string) (string, bool)

	// Children returns all descendants matching the selector.
	Children(selector string) []ListingNode
}

// fieldTimeout bounds every per-field DOM read. Reads are cheap once the
// page has settled, but a wedged renderer must not stall extraction.
const fieldTimeout = 5 * time.Second

// domNode adapts a chromedp node handle to ListingNode. A nil node
// addresses the whole document, which is how the crawler enumerates the
// listing containers themselves.
type domNode struct {
	ctx  context.Context
	node *cdp.Node
}

func newDOMNode(ctx context.Context, node *cdp.Node) *domNode {
	return &domNode{ctx: ctx, node: node}
}

func (n *domNode) query(selector string) []*cdp.Node {
	ctx, cancel := context.WithTimeout(n.ctx, fieldTimeout)
	defer cancel()

	var found []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if n.node != nil {
		opts = append(opts, chromedp.FromNode(n.node))
	}
	if err := chromedp.Run(ctx, chromedp.Nodes(selector, &found, opts...)); err != nil {
		return nil
	}
	return found
}

func (n *domNode) Text(selector string) (string, bool) {
	found := n.query(selector)
	if len(found) == 0 {
		return "", false
	}

	ctx, cancel := context.WithTimeout(n.ctx, fieldTimeout)
	defer cancel()

	var text string
	err := chromedp.Run(ctx,
		chromedp.Text([]cdp.NodeID{found[0].NodeID}, &text, chromedp.ByNodeID))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func (n *domNode) Attribute(selector, name string) (string, bool) {
	found := n.query(selector)
	if len(found) == 0 {
		return "", false
	}

	ctx, cancel := context.WithTimeout(n.ctx, fieldTimeout)
	defer cancel()

	var value string
	var ok bool
	err := chromedp.Run(ctx,
		chromedp.AttributeValue([]cdp.NodeID{found[0].NodeID}, name, &value, &ok, chromedp.ByNodeID))
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

func (n *domNode) Children(selector string) []ListingNode {
	found := n.query(selector)
	children := make([]ListingNode, 0, len(found))
	for _, c := range found {
		children = append(children, newDOMNode(n.ctx, c))
	}
	return children
}
