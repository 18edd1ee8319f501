// Package composite assembles generated scene assets into a single video.
// Each frame image becomes a video segment lasting as long as its audio
// (or a configured still duration when the frame has none); segments are
// concatenated with the ffmpeg concat demuxer and muxed with a continuous
// audio track.
package composite
