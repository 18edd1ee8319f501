// Command storyboard turns declarative scene description documents into
// generated image and speech assets and assembles them into movies.
package main
