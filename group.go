package lumen

import (
	"context"
	"slices"
	"strings"

	"github.com/mattjoyce/lumen/jsonrpc"
)

// SearchGroup routes subcommand-style queries to sub-handlers by their first
// word: with prefix "todo", the query "todo add milk" runs the group's "add"
// sub-handler with the text "add milk". Groups nest, so "todo list done"
// can descend into a subgroup. When no sub-handler key matches, the root
// callback runs; without one the group lists its sub-handlers as
// autocomplete results that rewrite the search box.
type SearchGroup struct {
	prefix string
	sep    string
	parent *SearchGroup
	plugin *Plugin

	keys    []string
	entries map[string]*groupEntry
	root    SearchCallback
}

// groupEntry is one sub-handler slot: a callback or a nested group.
type groupEntry struct {
	callback SearchCallback
	group    *SearchGroup
}

// NewSearchGroup builds a group triggered by prefix, with a space separator.
func NewSearchGroup(prefix string) *SearchGroup {
	return &SearchGroup{
		prefix:  prefix,
		sep:     " ",
		entries: make(map[string]*groupEntry),
	}
}

// SetSeparator replaces the token separator. Subgroups created afterwards
// inherit it.
func (g *SearchGroup) SetSeparator(sep string) *SearchGroup {
	g.sep = sep
	return g
}

// OnRoot sets the callback that runs when the query names the group but no
// sub-handler key, replacing the default sub-handler listing.
func (g *SearchGroup) OnRoot(cb SearchCallback) {
	g.root = cb
}

// Sub binds a sub-handler to key. Binding the same key twice overwrites the
// earlier entry.
func (g *SearchGroup) Sub(key string, cb SearchCallback) {
	g.put(key, &groupEntry{callback: cb})
}

// Subgroup creates and binds a nested group under key.
func (g *SearchGroup) Subgroup(key string) *SearchGroup {
	sub := NewSearchGroup(key)
	sub.sep = g.sep
	sub.parent = g
	g.put(key, &groupEntry{group: sub})
	return sub
}

func (g *SearchGroup) put(key string, entry *groupEntry) {
	if _, ok := g.entries[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.entries[key] = entry
}

// Signature joins the prefixes from the outermost group down to this one,
// i.e. what the user types to reach the group.
func (g *SearchGroup) Signature() string {
	var parts []string
	for cur := g; cur != nil; cur = cur.parent {
		parts = append(parts, cur.prefix)
	}
	slices.Reverse(parts)
	return strings.Join(parts, g.sep)
}

// matches reports whether the query's first token is the group prefix.
func (g *SearchGroup) matches(q *Query) bool {
	return strings.HasPrefix(q.Text()+g.sep, g.prefix+g.sep)
}

// callback routes the query: the token after the prefix picks the
// sub-handler, which receives the text with this group's prefix stripped.
func (g *SearchGroup) callback(ctx context.Context, q *Query) (any, error) {
	stripped := q.withText(strings.TrimPrefix(strings.TrimPrefix(q.Text(), g.prefix), g.sep))

	if parts := strings.Split(q.Text(), g.sep); len(parts) > 1 {
		if entry, ok := g.entries[parts[1]]; ok {
			if entry.group != nil {
				entry.group.plugin = g.plugin
				return entry.group.callback(ctx, stripped)
			}
			return entry.callback(ctx, stripped)
		}
	}

	if g.root != nil {
		return g.root(ctx, stripped)
	}
	return g.listEntries(q)
}

// listEntries is the default root behavior: one autocomplete result per
// sub-handler, in binding order.
func (g *SearchGroup) listEntries(q *Query) (any, error) {
	results := make([]*jsonrpc.Result, 0, len(g.keys))
	for _, key := range g.keys {
		results = append(results, g.entryResult(key, q))
	}
	return results, nil
}

// entryResult turns a sub-handler key into a result whose action rewrites
// the search box to trigger that sub-handler.
func (g *SearchGroup) entryResult(key string, q *Query) *jsonrpc.Result {
	next := q.Keyword() + " " + g.Signature() + g.sep + key + g.sep
	plugin := g.plugin
	return &jsonrpc.Result{
		Title:            key,
		AutoCompleteText: next,
		Callback: func(ctx context.Context) (*jsonrpc.ExecuteResponse, error) {
			if plugin == nil {
				return &jsonrpc.ExecuteResponse{Hide: false}, nil
			}
			err := plugin.API().ChangeQuery(ctx, next, false)
			return &jsonrpc.ExecuteResponse{Hide: false}, err
		},
	}
}
