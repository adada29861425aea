package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/voidshard/galleryimport/pkg/api"
	"github.com/voidshard/galleryimport/pkg/api/http/common"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	wait = 30 * time.Second

	// maxPayload is the largest import payload we'll accept in one upload
	maxPayload = 256 << 20
)

type Server struct {
	addr       string
	logDir     string
	debug      bool
	svc        api.API
	exit       chan os.Signal
	httpserver *http.Server
	log        zerolog.Logger
}

// Handler returns the router serving svc.
func (s *Server) Handler(svc api.API) http.Handler {
	s.svc = svc

	router := mux.NewRouter()
	router.HandleFunc(common.API_HEALTH, s.Health).Methods(http.MethodGet)
	router.HandleFunc(common.API_IMPORTS, s.Imports).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc(common.API_POKE, s.Poke).Methods(http.MethodPost)
	router.HandleFunc(common.API_IMPORT, s.Status).Methods(http.MethodGet)
	router.HandleFunc(common.API_CONTROL, s.Control).Methods(http.MethodPatch)
	router.HandleFunc(common.API_EXTERNAL, s.External).Methods(http.MethodGet)
	router.HandleFunc(common.API_GALLERY, s.DeleteGallery).Methods(http.MethodDelete)
	router.HandleFunc(common.API_NOTIFICATIONS, s.Notifications).Methods(http.MethodGet)

	if s.logDir != "" {
		s.log.Info().Str("dir", s.logDir).Msg("serving job logs")
		router.HandleFunc(common.API_LOG, s.Log).Methods(http.MethodGet)
	}

	if s.debug {
		s.log.Debug().Msg("debug enabled, adding per-request logging middleware")
		router.Use(loggingMiddleware(s.log))
	}

	return router
}

func (s *Server) ServeForever(svc api.API) error {
	s.httpserver = &http.Server{
		Handler:      s.Handler(svc),
		Addr:         s.addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpserver.Addr).Msg("listening")
		err := s.httpserver.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	signal.Notify(s.exit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.exit)

	select {
	case err := <-errs:
		return err
	case <-s.exit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return s.httpserver.Shutdown(ctx)
}

func (s *Server) Imports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getJobs(w, r)
	case http.MethodPost:
		s.createImport(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createImport takes the payload as the request body & job options from the
// query string.
func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "No body", http.StatusBadRequest)
		return
	}
	opts, err := common.DecodeOptions(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}

	job, err := s.svc.Import(r.Context(), common.Caller(r), http.MaxBytesReader(w, r.Body, maxPayload), opts)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}

	writeJson(w, http.StatusCreated, job)
}

func (s *Server) getJobs(w http.ResponseWriter, r *http.Request) {
	q := &structs.Query{}
	err := unmarshalQuery(w, r, q)
	if err != nil {
		return
	}

	items, err := s.svc.Jobs(r.Context(), common.Caller(r), q)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	if s.debug {
		s.log.Debug().Str("url", r.URL.String()).Int("items", len(items)).Msg("returned")
	}

	writeJson(w, http.StatusOK, items)
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context(), common.Caller(r), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, st)
}

func (s *Server) Control(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action := structs.ToAction(vars["action"])
	if action == "" {
		http.Error(w, "bad action", http.StatusBadRequest)
		return
	}

	job, err := s.svc.Control(r.Context(), common.Caller(r), &structs.ControlRequest{JobID: vars["id"], Action: action})
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, job)
}

func (s *Server) Poke(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Poke(r.Context(), common.Caller(r), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, report)
}

func (s *Server) DeleteGallery(w http.ResponseWriter, r *http.Request) {
	opts, err := common.DecodeOptions(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}

	result, err := s.svc.DeleteGallery(r.Context(), common.Caller(r), mux.Vars(r)["id"], opts)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, result)
}

func (s *Server) External(w http.ResponseWriter, r *http.Request) {
	nid, err := strconv.ParseInt(mux.Vars(r)["nid"], 10, 64)
	if err != nil {
		http.Error(w, "bad external id", http.StatusBadRequest)
		return
	}

	g, err := s.svc.CheckExternalID(r.Context(), common.Caller(r), nid)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, g)
}

func (s *Server) Notifications(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Notifications(r.Context(), common.Caller(r))
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, http.StatusOK, items)
}

// Log serves a job's log file. The caller needs the same rights as for the
// job's status.
func (s *Server) Log(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	jobID := strings.TrimSuffix(name, ".log")
	if jobID == "" || jobID == name || filepath.Base(name) != name {
		http.NotFound(w, r)
		return
	}

	_, err := s.svc.Status(r.Context(), common.Caller(r), jobID)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.logDir, name))
}

func (s *Server) Close() error {
	s.exit <- os.Interrupt
	return nil
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Health(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("health check")
		writeJson(w, http.StatusServiceUnavailable, &structs.Health{})
		return
	}
	writeJson(w, http.StatusOK, h)
}

func NewServer(addr, logDir string, debug bool, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Server{
		logDir: logDir,
		addr:   addr,
		debug:  debug,
		exit:   make(chan os.Signal, 1),
		log:    logger.With().Str("component", "http").Logger(),
	}
}
