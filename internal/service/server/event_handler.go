package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
)

const (
	progressBuffer    = 64
	keepAliveInterval = 15 * time.Second
)

type libraryEvent struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}

// eventStream buffers registry pushes for one SSE client.
// Snapshots keep only the latest value; progress samples are dropped when the client lags.
type eventStream struct {
	snapshots chan []*domain.DownloadTask
	progress  chan domain.DownloadProgress
	library   chan libraryEvent
}

func newEventStream() *eventStream {
	return &eventStream{
		snapshots: make(chan []*domain.DownloadTask, 1),
		progress:  make(chan domain.DownloadProgress, progressBuffer),
		library:   make(chan libraryEvent, 1),
	}
}

func (e *eventStream) pushSnapshot(tasks []*domain.DownloadTask) {
	select {
	case e.snapshots <- tasks:
		return
	default:
	}
	select {
	case <-e.snapshots:
	default:
	}
	select {
	case e.snapshots <- tasks:
	default:
	}
}

func (e *eventStream) pushProgress(p domain.DownloadProgress) {
	select {
	case e.progress <- p:
	default:
	}
}

func (e *eventStream) pushLibrary(ev libraryEvent) {
	select {
	case e.library <- ev:
	default:
	}
}

// handleEvents streams task snapshots, progress samples and library changes
func (s *Server) handleEvents(c *gin.Context) {
	stream := newEventStream()

	unsubscribe := s.deps.Downloads.Subscribe(stream.pushSnapshot)
	defer unsubscribe()
	unsubscribeProgress := s.deps.Downloads.SubscribeProgress(stream.pushProgress)
	defer unsubscribeProgress()

	if s.deps.Events != nil {
		unsubscribeLibrary := s.deps.Events.Subscribe(&event.HandlerFunc{
			Names: []string{event.NameLibraryChanged},
			Fn: func(ev event.DomainEvent) {
				if lc, ok := ev.(event.LibraryChanged); ok {
					stream.pushLibrary(libraryEvent{Path: lc.Path, Op: lc.Op})
				}
			},
		})
		defer unsubscribeLibrary()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case tasks := <-stream.snapshots:
			c.SSEvent("tasks", tasks)
		case p := <-stream.progress:
			c.SSEvent("progress", p)
		case ev := <-stream.library:
			c.SSEvent("library", ev)
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		return true
	})
}
