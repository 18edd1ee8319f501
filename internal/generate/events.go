package generate

import (
	"log/slog"
	"time"
)

// AssetType distinguishes the two kinds of generated assets.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetAudio AssetType = "audio"
)

// AssetStatus is the lifecycle state of a single asset task.
type AssetStatus string

const (
	StatusPending    AssetStatus = "pending"
	StatusGenerating AssetStatus = "generating"
	StatusCached     AssetStatus = "cached"
	StatusComplete   AssetStatus = "complete"
	StatusFailed     AssetStatus = "failed"
)

// AssetTask tracks one asset through generation. A task moves from pending
// to either cached or generating, and ends complete or failed.
type AssetTask struct {
	SceneID    string
	FrameID    string
	Type       AssetType
	Status     AssetStatus
	Hash       string
	Cached     bool
	Err        string
	OutputPath string

	startTime time.Time
	endTime   time.Time
}

// Duration reports how long the generating phase took. Zero for cached
// assets and tasks that never started.
func (t *AssetTask) Duration() time.Duration {
	if t.startTime.IsZero() || t.endTime.IsZero() {
		return 0
	}
	return t.endTime.Sub(t.startTime)
}

// ProgressCallback receives generation lifecycle events. Implementations
// are called from multiple goroutines and must be safe for concurrent use.
type ProgressCallback interface {
	OnAssetStart(task *AssetTask)
	OnAssetCached(task *AssetTask)
	OnAssetComplete(task *AssetTask)
	OnAssetError(task *AssetTask, err error)
	OnSceneComplete(sceneID string)
}

// notifier shields the generator from callback panics. A broken progress
// display must never abort asset generation.
type notifier struct {
	callback ProgressCallback
	logger   *slog.Logger
}

func (n notifier) guard(event string, fn func()) {
	if n.callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("progress callback panicked", "event", event, "panic", r)
		}
	}()
	fn()
}

func (n notifier) assetStart(task *AssetTask) {
	n.guard("asset_start", func() { n.callback.OnAssetStart(task) })
}

func (n notifier) assetCached(task *AssetTask) {
	n.guard("asset_cached", func() { n.callback.OnAssetCached(task) })
}

func (n notifier) assetComplete(task *AssetTask) {
	n.guard("asset_complete", func() { n.callback.OnAssetComplete(task) })
}

func (n notifier) assetError(task *AssetTask, err error) {
	n.guard("asset_error", func() { n.callback.OnAssetError(task, err) })
}

func (n notifier) sceneComplete(sceneID string) {
	n.guard("scene_complete", func() { n.callback.OnSceneComplete(sceneID) })
}
