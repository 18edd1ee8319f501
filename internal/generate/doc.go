// Package generate orchestrates concurrent asset generation for a resolved
// scene graph. Scenes and frames fan out in parallel while a weighted
// semaphore bounds the number of in-flight backend calls. Every asset is
// content-addressed: the cache hash is computed before any backend work so
// cache hits skip the call entirely.
package generate
