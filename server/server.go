package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/tanklab/octowatch/server/catalog"
	"github.com/tanklab/octowatch/server/detect"
	"github.com/tanklab/octowatch/server/keyframe"
)

type Server struct {
	Log logs.Log

	cfg        Config
	catalog    *catalog.Catalog
	store      *keyframe.Store
	detect     *detect.Manager
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
}

func NewServer(configFile string) (*Server, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	return NewServerFromConfig(logger, cfg)
}

// NewServerFromConfig is split out from NewServer so that tests can inject
// their own logger and config.
func NewServerFromConfig(logger logs.Log, cfg Config) (*Server, error) {
	if cfg.VideoRoot == "" {
		return nil, fmt.Errorf("videoRoot must be configured")
	}
	if err := os.MkdirAll(cfg.VideoRoot, 0777); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.keyframeRoot(), 0777); err != nil {
		return nil, err
	}
	cat, err := catalog.Open(logger, cfg.DB)
	if err != nil {
		return nil, err
	}
	detector := cfg.Detector
	if len(detector) == 0 {
		// A server without a configured detector can still serve and edit
		// keyframe documents, so don't refuse to start.
		logger.Warnf("No detector configured. Detection jobs will fail to start.")
		detector = []string{"false"}
	}
	manager, err := detect.NewManager(logger, detector)
	if err != nil {
		return nil, err
	}
	store, err := keyframe.NewStore(logger, cfg.keyframeRoot())
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:     logger,
		cfg:     cfg,
		catalog: cat,
		store:   store,
		detect:  manager,
	}
	s.setupHttpRoutes()
	return s, nil
}

// port example: ":8081"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.detect.CancelAll()
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("Shutdown complete, with error: %v", err)
		} else {
			s.Log.Infof("Shutdown complete")
		}
	}
	s.Log.Close()
}
