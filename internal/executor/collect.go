package executor

import (
	"github.com/hanpama/graphproxy/internal/language"
	"github.com/hanpama/graphproxy/internal/schema"
)

// fieldGroup is every field node selected under one response key.
type fieldGroup struct {
	key   string
	nodes []*language.Field
}

// collect groups the fields of set that apply to parent by response key,
// in the order each key first appears. Fragments are expanded once each.
func (x *execution) collect(parent *schema.Type, set language.SelectionSet) []*fieldGroup {
	var groups []*fieldGroup
	byKey := make(map[string]*fieldGroup)
	visited := make(map[string]bool)

	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *language.Field:
				if !x.included(sel.Directives) {
					continue
				}
				key := sel.Alias
				if key == "" {
					key = sel.Name
				}
				if g, ok := byKey[key]; ok {
					g.nodes = append(g.nodes, sel)
					continue
				}
				g := &fieldGroup{key: key, nodes: []*language.Field{sel}}
				byKey[key] = g
				groups = append(groups, g)
			case *language.InlineFragment:
				if x.included(sel.Directives) && x.applies(parent, sel.TypeCondition) {
					walk(sel.SelectionSet)
				}
			case *language.FragmentSpread:
				if visited[sel.Name] || !x.included(sel.Directives) {
					continue
				}
				visited[sel.Name] = true
				frag := x.doc.Fragments.ForName(sel.Name)
				if frag != nil && x.applies(parent, frag.TypeCondition) {
					walk(frag.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return groups
}

// included evaluates @skip and @include.
func (x *execution) included(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && x.condition(d) {
		return false
	}
	if d := dirs.ForName("include"); d != nil && !x.condition(d) {
		return false
	}
	return true
}

func (x *execution) condition(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(x.vars)
	b, _ := v.(bool)
	return err == nil && b
}

// applies reports whether a fragment with type condition cond selects on
// objects of type obj.
func (x *execution) applies(obj *schema.Type, cond string) bool {
	return cond == "" || cond == obj.Name || x.schema.IsPossibleType(cond, obj.Name)
}
