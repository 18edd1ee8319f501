// Package sdl defines the typed data model for the scene description
// language: characters, image and TTS templates with ordered parts, scenes,
// frames, and the document-level storyboard configuration.
//
// The package also owns the template grammar: expanding an instruction string
// into ordered prompt/image parts, rendering parts against a variable
// context, and the smart-join used when collapsing prompt parts into a single
// display string. Entities expose a uniform Field accessor so the reference
// resolver can navigate the graph without knowing concrete types.
package sdl
