package page

import (
	"encoding/json"
	"fmt"
	"strings"
)

// By selects how a Loc matches an element.
type By string

// supported locator strategies
const (
	ByID          By = "id"
	ByTagName     By = "tag name"
	ByCSSSelector By = "css selector"
)

// Loc matches an element within a document or shadow root.
type Loc struct {
	By    By
	Value string
}

func (l Loc) String() string { return fmt.Sprintf("%s=%q", l.By, l.Value) }

// ID returns a Loc matching the element with the given id.
func ID(v string) Loc { return Loc{By: ByID, Value: v} }

// Tag returns a Loc matching the first element with the given tag name.
func Tag(v string) Loc { return Loc{By: ByTagName, Value: v} }

// CSS returns a Loc matching the first element matched by a CSS selector.
func CSS(v string) Loc { return Loc{By: ByCSSSelector, Value: v} }

// Join flattens items, consisting of Loc and []Loc values, into a single chain.
// It panics on any other type.
func Join(items ...any) []Loc {
	var all []Loc
	for _, it := range items {
		switch v := it.(type) {
		case Loc:
			all = append(all, v)
		case []Loc:
			all = append(all, v...)
		default:
			panic(fmt.Sprintf("invalid type %T (must be Loc or []Loc)", it))
		}
	}
	return all
}

// describe renders a locator chain for failure messages.
func describe(locs []Loc) string {
	if len(locs) == 0 {
		return "[document]"
	}
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, " > ") + "]"
}

// QueryScript returns a JavaScript expression evaluating to the element matched by locs.
//
// Locators are applied successively: each one searches inside the element
// matched by the previous one, or inside its shadow root if it has one.
// An empty chain evaluates to the document element. When an intermediate
// element is missing the expression evaluates to undefined.
func QueryScript(locs []Loc) (string, error) {
	var query string
	if len(locs) == 0 {
		query = "document.documentElement"
	}
	for i, l := range locs {
		if i == 0 {
			query = "document"
		} else {
			query = "expand(" + query + ")?"
		}
		v, err := json.Marshal(l.Value)
		if err != nil {
			return "", fmt.Errorf("quote %v: %w", l, err)
		}
		switch l.By {
		case ByID:
			query += ".getElementById(" + string(v) + ")"
		case ByTagName:
			query += ".getElementsByTagName(" + string(v) + ").item(0)"
		case ByCSSSelector:
			query += ".querySelector(" + string(v) + ")"
		default:
			return "", fmt.Errorf("invalid locator strategy %q", l.By)
		}
	}
	return "(() => { const expand = e => e && (e.shadowRoot || e); return " + query + "; })()", nil
}

// isStaleError reports whether err was caused by using an element detached from the document.
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "not attached") || strings.Contains(msg, "detached") ||
		strings.Contains(msg, "stale element")
}
