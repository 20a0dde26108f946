package resolver

import (
	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

var standardLadder = []domain.VideoQualityInfo{
	{Quality: "1080p", Format: "mp4", Size: 150 * vo.MB, Width: 1920, Height: 1080, FPS: 30, HasAudio: true},
	{Quality: "720p", Format: "mp4", Size: 80 * vo.MB, Width: 1280, Height: 720, FPS: 30, HasAudio: true},
	{Quality: "480p", Format: "mp4", Size: 45 * vo.MB, Width: 854, Height: 480, FPS: 30, HasAudio: true},
	{Quality: "360p", Format: "mp4", Size: 25 * vo.MB, Width: 640, Height: 360, FPS: 30, HasAudio: true},
	{Quality: "144p", Format: "mp4", Size: 10 * vo.MB, Width: 256, Height: 144, FPS: 30, HasAudio: true},
}

var highResLadder = []domain.VideoQualityInfo{
	{Quality: "2160p", Format: "mp4", Size: 500 * vo.MB, Width: 3840, Height: 2160, FPS: 30, HasAudio: true},
	{Quality: "1440p", Format: "mp4", Size: 300 * vo.MB, Width: 2560, Height: 1440, FPS: 30, HasAudio: true},
}

var audioOnly = domain.VideoQualityInfo{Quality: "audio", Format: "mp3", Size: 5 * vo.MB, HasAudio: true}

// qualitiesFor returns the variant list offered for a platform
func qualitiesFor(p domain.Platform) []domain.VideoQualityInfo {
	out := make([]domain.VideoQualityInfo, 0, len(standardLadder)+len(highResLadder)+1)
	if p.Supports4K() {
		out = append(out, highResLadder...)
	}
	out = append(out, standardLadder...)
	return append(out, audioOnly)
}
