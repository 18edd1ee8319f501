package refs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

// visited tracks the reference strings currently being resolved on one call
// path. Copies with-addition keep sibling branches independent.
type visited map[string]struct{}

func (v visited) with(ref string) visited {
	next := make(visited, len(v)+1)
	for k := range v {
		next[k] = struct{}{}
	}
	next[ref] = struct{}{}
	return next
}

// Resolve returns a new scene graph in which every @-reference has been
// replaced by its resolved value. The input graph is not mutated. Resolving
// an already-resolved graph is a no-op.
func Resolve(graph *sdl.SceneGraph) (*sdl.SceneGraph, error) {
	tree, err := graph.Dump()
	if err != nil {
		return nil, services.Wrap(services.ErrReference, "resolve", "", "", err)
	}
	resolved, err := scanAndResolve(tree, graph, visited{}, nil, nil)
	if err != nil {
		return nil, err
	}
	resolvedTree, ok := resolved.(map[string]any)
	if !ok {
		return nil, refErr(fmt.Sprintf("resolution produced %T, expected a mapping", resolved))
	}
	return sdl.GraphFromTree(resolvedTree)
}

// scanAndResolve walks a generic value. Mappings get the two-phase
// treatment: nested mappings recurse with the current mapping as the new
// parent, plain values recurse with the parent unchanged, and @self values
// are deferred until the siblings have resolved so they can see the
// partially-resolved mapping as their self context.
func scanAndResolve(obj any, graph *sdl.SceneGraph, seen visited, parent, self any) (any, error) {
	switch value := obj.(type) {
	case string:
		if strings.HasPrefix(value, "@") {
			return resolveReference(value, graph, seen, parent, nil)
		}
		return value, nil

	case map[string]any:
		temp := make(map[string]any, len(value))
		var selfKeys []string

		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			child := value[key]
			if s, ok := child.(string); ok && strings.HasPrefix(s, "@self") {
				selfKeys = append(selfKeys, key)
				temp[key] = s
				continue
			}
			var err error
			if _, isMap := child.(map[string]any); isMap {
				temp[key], err = scanAndResolve(child, graph, seen, value, nil)
			} else {
				temp[key], err = scanAndResolve(child, graph, seen, parent, nil)
			}
			if err != nil {
				return nil, err
			}
		}

		for _, key := range selfKeys {
			resolved, err := resolveReference(temp[key].(string), graph, seen, parent, temp)
			if err != nil {
				return nil, err
			}
			temp[key] = resolved
		}
		return temp, nil

	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			resolved, err := scanAndResolve(item, graph, seen, parent, nil)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return obj, nil
	}
}

func resolveReference(ref string, graph *sdl.SceneGraph, seen visited, parent, self any) (any, error) {
	if _, ok := seen[ref]; ok {
		return nil, refErr(fmt.Sprintf("circular reference detected: %s", ref))
	}
	seen = seen.with(ref)

	path := strings.TrimPrefix(ref, "@")
	if path == "" {
		return nil, refErr("reference cannot be empty after @")
	}
	parts := strings.Split(path, ".")

	var value any
	var err error
	switch parts[0] {
	case "self":
		if self == nil {
			return nil, refErr(fmt.Sprintf("cannot use @self reference '%s' without a context", ref))
		}
		value = self
		if len(parts) > 1 {
			value, err = navigate(self, parts[1:], "self")
		}
	case "parent":
		if parent == nil {
			return nil, refErr(fmt.Sprintf("cannot use @parent reference '%s' without a parent context", ref))
		}
		value = parent
		if len(parts) > 1 {
			value, err = navigate(parent, parts[1:], "parent")
		}
	default:
		value, err = navigate(graph, parts, "")
	}
	if err != nil {
		return nil, err
	}

	// The designated value may itself contain references.
	resolved, err := scanAndResolve(value, graph, seen, parent, self)
	if err != nil {
		return nil, err
	}
	return canonicalize(resolved)
}

// canonicalize serializes structured resolution results to a compact JSON
// string, because the destination slots (template variables) are
// string-typed. Scalars pass through with their native type.
func canonicalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64, int, int64:
		return value, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, refErr(fmt.Sprintf("cannot serialize resolved value of type %s", typeName(value)))
		}
		return string(data), nil
	}
}

// navigate walks the remaining path segments from root. Each hop tries
// entity field access, then map key access, then list lookup by id (with a
// leading underscore stripped from the segment before matching).
func navigate(root any, parts []string, prefix string) (any, error) {
	current := root
	currentPath := prefix

	for _, part := range parts {
		if currentPath == "" {
			currentPath = part
		} else {
			currentPath = currentPath + "." + part
		}

		switch node := current.(type) {
		case sdl.Entity:
			value, ok := node.Field(part)
			if !ok {
				return nil, refErr(fmt.Sprintf("cannot access '%s' on %s at path: %s", part, typeName(node), currentPath))
			}
			current = value

		case map[string]any:
			value, ok := node[part]
			if !ok {
				return nil, refErr(fmt.Sprintf("key '%s' not found at path: %s", part, currentPath))
			}
			current = value

		case []any:
			lookup := strings.TrimPrefix(part, "_")
			found := false
			for _, item := range node {
				if itemID(item) == lookup {
					current = item
					found = true
					break
				}
			}
			if !found {
				return nil, refErr(fmt.Sprintf("no item with id='%s' found at path: %s", lookup, currentPath))
			}

		default:
			return nil, refErr(fmt.Sprintf("cannot access '%s' on %s at path: %s", part, typeName(current), currentPath))
		}
	}
	return current, nil
}

func itemID(item any) string {
	switch node := item.(type) {
	case sdl.Entity:
		if value, ok := node.Field("id"); ok {
			if id, ok := value.(string); ok {
				return id
			}
		}
	case map[string]any:
		if id, ok := node["id"].(string); ok {
			return id
		}
	}
	return ""
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

func refErr(msg string) error {
	return services.Wrap(services.ErrReference, "resolve", "", msg, nil)
}
