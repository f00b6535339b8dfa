// Package statsview serves live runtime charts (heap, goroutines, GC pauses)
// over HTTP, next to the standard pprof handlers.
//
// After launch the charts are at
//
//	<addr>/debug/statsview
//
// and pprof at <addr>/debug/pprof/.
package statsview

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	log "github.com/sirupsen/logrus"
)

const path = "/debug/statsview"

// URL is where the charts appear for a viewer listening on addr.
func URL(addr string) string {
	return "http://" + addr + path
}

// Launch starts the viewer in a new goroutine and returns a function that
// stops it.
func Launch(addr string) (stop func()) {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()

	log.Infof("statsview: available at %s", URL(addr))
	return mgr.Stop
}
