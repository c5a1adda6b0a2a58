package visualization

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/spikenet/internal/recorder"
	"github.com/nvandessel/spikenet/internal/simulation"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>spikenet: {{.Dir}}</title></head>
<body>
<h1>{{.Dir}}</h1>
<p>{{.Summary.Steps}} steps, {{.Summary.TotalSpikes}} spikes, peak {{.Summary.PeakSpikes}} at step {{.Summary.PeakStep}}</p>
<img src="/plot/totals.png" alt="population activity">
{{if .HasRaster}}<img src="/plot/raster.png" alt="observed units">{{end}}
</body>
</html>
`))

// Server serves the plots and totals of one run directory.
type Server struct {
	dir        string
	dtMS       float64
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a server for the run in dir integrated with dtMS.
func NewServer(dir string, dtMS float64) *Server {
	return &Server{dir: dir, dtMS: dtMS}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe starts the HTTP server on an OS-assigned port and blocks
// until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/plot/totals.png", s.handleTotalsPlot)
	mux.HandleFunc("/plot/raster.png", s.handleRasterPlot)
	mux.HandleFunc("/api/totals", s.handleTotals)

	// Let the OS pick a free port.
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	totals, raster, err := recorder.ReadRunDir(s.dir)
	if err != nil {
		http.Error(w, "read error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTemplate.Execute(w, map[string]any{
		"Dir":       s.dir,
		"Summary":   simulation.Summarize(totals, 0, s.dtMS),
		"HasRaster": len(raster) > 0,
	})
}

func (s *Server) handleTotalsPlot(w http.ResponseWriter, r *http.Request) {
	totals, _, err := recorder.ReadRunDir(s.dir)
	if err != nil {
		http.Error(w, "read error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	p, err := TotalsPlot(totals, s.dtMS)
	if err != nil {
		http.Error(w, "plot error: "+err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	WritePNG(p, w)
}

func (s *Server) handleRasterPlot(w http.ResponseWriter, r *http.Request) {
	_, raster, err := recorder.ReadRunDir(s.dir)
	if err != nil {
		http.Error(w, "read error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	p, err := RasterPlot(raster, s.dtMS)
	if err != nil {
		http.Error(w, "plot error: "+err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	WritePNG(p, w)
}

// handleTotals returns the aggregate stream as JSON.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, _, err := recorder.ReadRunDir(s.dir)
	if err != nil {
		http.Error(w, "read error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"dt_ms":  s.dtMS,
		"totals": totals,
	})
}
