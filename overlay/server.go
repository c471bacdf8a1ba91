// Package overlay serves pipeline statistics to a browser, pushed over a websocket.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muesli/gamut"

	"github.com/b1naryth1ef/meshpipe/host"
)

// StatsFunc fetches a stats snapshot. With a running host this is a Host.Do round trip.
type StatsFunc func(ctx context.Context) (host.Stats, error)

// HostStats reads stats from a host through its event loop.
func HostStats(h *host.Host) StatsFunc {
	return func(ctx context.Context) (host.Stats, error) {
		var stats host.Stats
		err := h.Do(ctx, func() {
			stats = h.Stats()
		})
		return stats, err
	}
}

type Server struct {
	stats    StatsFunc
	interval time.Duration
	log      *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	colors []string
}

func NewServer(stats StatsFunc, interval time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Server{
		stats:    stats,
		interval: interval,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return isLoopbackRemote(r.RemoteAddr) },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.IndexHandler())
	mux.HandleFunc("/stats", s.StatsHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	return mux
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logf("listening on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write([]byte(GetIndexHTML()))
	}
}

func (s *Server) StatsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		snap, err := s.snapshot(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(snap)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id := s.nextID.Add(1)
		s.logf("client %d connected", id)
		defer s.logf("client %d disconnected", id)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The client never sends anything; reading only notices the close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			snap, err := s.snapshot(ctx)
			if err != nil {
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				s.logf("failed to encode snapshot: %v", err)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			case <-ticker.C:
			}
		}
	}
}

func (s *Server) snapshot(ctx context.Context) (Snapshot, error) {
	stats, err := s.stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	// generated once per worker count so a worker keeps its color
	s.mu.Lock()
	if len(s.colors) != len(stats.Workers) {
		s.colors = WorkerColors(len(stats.Workers))
	}
	colors := s.colors
	s.mu.Unlock()
	return NewSnapshot(stats, colors, time.Now()), nil
}

func (s *Server) logf(format string, args ...any) {
	s.log.Printf("[overlay] "+format, args...)
}

// WorkerColors picks n distinguishable colors, one per worker.
func WorkerColors(n int) []string {
	if n <= 0 {
		return nil
	}
	colors, err := gamut.Generate(n, gamut.HappyGenerator{})
	if err != nil || len(colors) < n {
		colors = gamut.Tints(color.RGBA{R: 0x4a, G: 0x90, B: 0xd9, A: 0xff}, n)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = hex(colors[i%len(colors)])
	}
	return out
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func isLoopbackRemote(remoteAddr string) bool {
	h, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		h = remoteAddr
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
