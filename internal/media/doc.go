// Package media holds small audio file helpers shared by the speech
// generation and video assembly paths.
package media
