// Package refs resolves @-references in a scene graph.
//
// References are strings of the form @section.id.field... where section is
// one of characters, assets, or scenes, plus the context-relative forms
// @self.field and @parent.field. Resolution walks a generic dump of the
// graph, replaces each reference with the value it designates (recursively,
// references within references included), serializes structured results to
// compact JSON, and rebuilds a typed graph. A path-local visited set detects
// circular chains without letting sibling branches collide.
package refs
