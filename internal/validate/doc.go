// Package validate checks a resolved scene graph for broken file
// references, unknown templates, missing template variables, and malformed
// entity references before any generation work starts. All problems are
// collected into a single aggregated error rather than failing on the
// first one.
package validate
