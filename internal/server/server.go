package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"fbvnc/internal/framediff"
	"fbvnc/internal/rfb"
	"fbvnc/internal/session"
	"fbvnc/internal/types"
)

// SurfaceFactory opens the display surface at path.
type SurfaceFactory func(path string) (types.Surface, error)

// KeyboardFactory opens a keyboard sink at path.
type KeyboardFactory func(path string) (KeyInjector, error)

// PointerFactory opens a pointer sink at path for a width x height surface.
type PointerFactory func(path string, width, height int) (PointerInjector, error)

// Config holds all server configuration.
type Config struct {
	FBDevice    string
	KbdDevice   string
	PtrDevice   string
	Port        int
	DesktopName string
	Bounds      framediff.BoundsPolicy
	Stats       bool

	// Control plane, disabled when Addr is empty.
	Addr  string
	Token string
	TLS   *tls.Config

	NewSurface  SurfaceFactory
	NewKeyboard KeyboardFactory
	NewPointer  PointerFactory
	NewServer   rfb.ServerFactory
	NewPeer     session.PeerFactory
}

type Server struct {
	cfg      Config
	loop     *Loop
	sessions *session.Registry

	surface  types.Surface
	keyboard KeyInjector
	pointer  PointerInjector

	mu    sync.Mutex
	peers map[string]*session.Peer
}

// New opens the surface and both input devices and starts the RFB server.
func New(cfg Config) (*Server, error) {
	surface, err := cfg.NewSurface(cfg.FBDevice)
	if err != nil {
		return nil, err
	}
	f := surface.Format()

	keyboard, err := cfg.NewKeyboard(cfg.KbdDevice)
	if err != nil {
		surface.Close()
		return nil, err
	}

	pointer, err := cfg.NewPointer(cfg.PtrDevice, f.Width, f.Height)
	if err != nil {
		keyboard.Close()
		surface.Close()
		return nil, err
	}

	sessions := session.NewRegistry()
	loop, err := NewLoop(LoopConfig{
		Surface:     surface,
		Keyboard:    keyboard,
		Pointer:     pointer,
		Sessions:    sessions,
		NewServer:   cfg.NewServer,
		Port:        cfg.Port,
		DesktopName: cfg.DesktopName,
		Bounds:      cfg.Bounds,
		Stats:       cfg.Stats,
	})
	if err != nil {
		pointer.Close()
		keyboard.Close()
		surface.Close()
		return nil, err
	}

	s := newServer(cfg, loop)
	s.surface = surface
	s.keyboard = keyboard
	s.pointer = pointer
	return s, nil
}

func newServer(cfg Config, loop *Loop) *Server {
	if cfg.NewPeer == nil {
		cfg.NewPeer = session.NewPeer
	}
	return &Server{
		cfg:      cfg,
		loop:     loop,
		sessions: loop.Sessions(),
		peers:    make(map[string]*session.Peer),
	}
}

func (s *Server) Loop() *Loop { return s.loop }

// Run serves the control plane, if configured, and drives the poll loop
// until ctx is cancelled. All resources are released on return. A control
// plane address that cannot be bound fails Run before the loop starts.
func (s *Server) Run(ctx context.Context) error {
	var hs *http.Server
	httpErr := make(chan error, 1)
	if s.cfg.Addr != "" {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			s.Teardown()
			return fmt.Errorf("control plane: %w", err)
		}
		hs = &http.Server{
			Addr:      ln.Addr().String(),
			Handler:   s.routes(),
			TLSConfig: s.cfg.TLS,
		}
		go func() {
			err := s.serve(hs, ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("control: serve error: %v", err)
			}
			httpErr <- err
		}()
	}

	err := s.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if hs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if serr := hs.Shutdown(shutdownCtx); serr != nil {
			log.Debugf("control: shutdown: %v", serr)
		}
		cancel()
		if herr := <-httpErr; herr != nil && !errors.Is(herr, http.ErrServerClosed) && err == nil {
			err = herr
		}
	}

	s.Teardown()
	return err
}

func (s *Server) serve(hs *http.Server, ln net.Listener) error {
	scheme := "http"
	if hs.TLSConfig != nil {
		scheme = "https"
	}
	log.Infof("control: listening on %s://%s", scheme, hs.Addr)

	if hs.TLSConfig != nil {
		// certificates come from TLSConfig
		return hs.ServeTLS(ln, "", "")
	}
	return hs.Serve(ln)
}

// Teardown closes every session and releases the devices.
func (s *Server) Teardown() {
	s.sessions.CloseAll(session.KindWebRTC)
	s.loop.Close()
	if s.pointer != nil {
		s.pointer.Close()
	}
	if s.keyboard != nil {
		s.keyboard.Close()
	}
	if s.surface != nil {
		s.surface.Close()
	}
	log.Info("server: stopped")
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /debug/frame", s.handleDebugFrame)
	mux.HandleFunc("POST /input", s.handleInputOffer)
	mux.HandleFunc("PATCH /input/{id}", s.handleInputPatch)
	mux.HandleFunc("DELETE /input/{id}", s.handleInputDelete)
	mux.HandleFunc("OPTIONS /input", s.handleInputOptions)
	mux.HandleFunc("OPTIONS /input/{id}", s.handleInputOptions)
	return mux
}

// Status is the body of GET /status.
type Status struct {
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	BitsPerPixel int            `json:"bits_per_pixel"`
	Format       string         `json:"format"`
	State        string         `json:"state"`
	Viewers      int            `json:"viewers"`
	Sessions     []session.Info `json:"sessions"`
	Counters     Counters       `json:"counters"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", 401)
		return
	}

	f := s.loop.Format()
	st := Status{
		Width:        f.Width,
		Height:       f.Height,
		BitsPerPixel: f.BitsPerPixel,
		Format:       f.String(),
		State:        s.loop.State().String(),
		Viewers:      s.loop.Viewers(),
		Sessions:     s.sessions.List(),
		Counters:     s.loop.Counters(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Debugf("control: write status: %v", err)
	}
}

func (s *Server) handleDebugFrame(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", 401)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	img, err := s.loop.Snapshot(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("grab failed: %v", err), 503)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Debugf("control: write frame: %v", err)
	}
}

func (s *Server) handleInputOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Expose-Headers", "Location")
	w.WriteHeader(204)
}

func (s *Server) handleInputOffer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", "Location")

	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", 401)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  string(body),
	}

	sessionID := uuid.New().String()
	peer, err := s.cfg.NewPeer(sessionID, s.loop.Enqueue)
	if err != nil {
		log.Errorf("control: session create error: %v", err)
		http.Error(w, "internal error", 500)
		return
	}

	// Registered before negotiation so a peer that drops mid-offer cleans up.
	s.mu.Lock()
	s.peers[sessionID] = peer
	s.mu.Unlock()
	peer.OnClose(func() {
		s.mu.Lock()
		delete(s.peers, sessionID)
		s.mu.Unlock()
		s.sessions.Remove(sessionID)
	})
	s.sessions.Insert(sessionID, session.KindWebRTC, remoteHost(r.RemoteAddr), peer.Close)

	if err := peer.PC.SetRemoteDescription(offer); err != nil {
		peer.Close()
		log.Warnf("control: set remote desc error: %v", err)
		http.Error(w, "bad SDP offer", 400)
		return
	}

	answer, err := peer.PC.CreateAnswer(nil)
	if err != nil {
		peer.Close()
		log.Errorf("control: create answer error: %v", err)
		http.Error(w, "internal error", 500)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(peer.PC)
	if err := peer.PC.SetLocalDescription(answer); err != nil {
		peer.Close()
		log.Errorf("control: set local desc error: %v", err)
		http.Error(w, "internal error", 500)
		return
	}

	// Wait for ICE gathering to complete
	select {
	case <-gatherComplete:
	case <-peer.Stop:
		log.Warnf("control: session %s closed during negotiation", sessionID)
		http.Error(w, "session closed", 410)
		return
	case <-r.Context().Done():
		peer.Close()
		return
	}

	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("Location", fmt.Sprintf("/input/%s", sessionID))
	w.WriteHeader(201)
	w.Write([]byte(peer.PC.LocalDescription().SDP))
}

func (s *Server) handleInputPatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", 401)
		return
	}

	id := r.PathValue("id")
	s.mu.Lock()
	peer := s.peers[id]
	s.mu.Unlock()

	if peer == nil {
		http.Error(w, "not found", 404)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", 400)
		return
	}

	for _, line := range strings.Split(string(body), "\r\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "a=candidate:") {
			continue
		}
		if err := peer.PC.AddICECandidate(webrtc.ICECandidateInit{
			Candidate: strings.TrimPrefix(line, "a="),
		}); err != nil {
			log.Warnf("control: add ice candidate error: %v", err)
		}
	}

	w.WriteHeader(204)
}

func (s *Server) handleInputDelete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", 401)
		return
	}

	id := r.PathValue("id")
	info, ok := s.sessions.Get(id)
	if !ok || info.Kind != session.KindWebRTC {
		http.Error(w, "not found", 404)
		return
	}

	s.sessions.Close(id)
	w.WriteHeader(200)
}

// checkAuth accepts every request when no token is configured.
func (s *Server) checkAuth(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return auth == "Bearer "+s.cfg.Token
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
