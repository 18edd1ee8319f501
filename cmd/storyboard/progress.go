package main

import (
	"fmt"
	"io"
	"sync"

	"storyboard/internal/generate"
)

// consoleProgress prints one line per asset lifecycle event. Events arrive
// from multiple goroutines, so writes are serialized.
type consoleProgress struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleProgress(out io.Writer) *consoleProgress {
	return &consoleProgress{out: out}
}

func (p *consoleProgress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *consoleProgress) OnAssetStart(task *generate.AssetTask) {
	p.printf("  %s/%s %s: generating...\n", task.SceneID, task.FrameID, task.Type)
}

func (p *consoleProgress) OnAssetCached(task *generate.AssetTask) {
	p.printf("  %s/%s %s: cached (%s)\n", task.SceneID, task.FrameID, task.Type, task.Hash)
}

func (p *consoleProgress) OnAssetComplete(task *generate.AssetTask) {
	p.printf("  %s/%s %s: done in %.1fs\n", task.SceneID, task.FrameID, task.Type, task.Duration().Seconds())
}

func (p *consoleProgress) OnAssetError(task *generate.AssetTask, err error) {
	p.printf("  %s/%s %s: failed: %v\n", task.SceneID, task.FrameID, task.Type, err)
}

func (p *consoleProgress) OnSceneComplete(sceneID string) {
	p.printf("Scene %s complete\n", sceneID)
}
