// Package load assembles a scene graph from a root YAML manifest and its
// side documents (characters, image templates, TTS templates, scenes).
//
// Side documents follow a keyed-map convention where every key carries a
// leading underscore; the loader normalizes those maps into arrays of
// entities with an id field, injecting scene_id into every frame. Loading
// finishes with a path-resolution pass (relative file references become
// absolute against the base path) and the reference-resolution pass, so the
// returned graph contains no unresolved @-references.
package load
