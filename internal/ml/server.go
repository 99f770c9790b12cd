package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"race-predictor/internal/features"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsReadLimit  = 64 * 1024
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second

	requestIDHeader = "X-Request-ID"

	defaultWriteTimeout = 30 * time.Second
	writeTimeoutMargin  = 10 * time.Second
)

// Server exposes a Service over HTTP and a WebSocket stream.
type Server struct {
	svc      Service
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// StreamMessage is what the stream endpoint sends back for each request.
type StreamMessage struct {
	Type      string  `json:"type"` // result or error
	RequestID string  `json:"request_id,omitempty"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	Status    int     `json:"status,omitempty"`
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithModelTimeout keeps the write deadline past the slowest model call
// the service allows, so a slow prediction is not cut off mid-response.
func WithModelTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if w := d + writeTimeoutMargin; w > s.server.WriteTimeout {
			s.server.WriteTimeout = w
		}
	}
}

// NewServer wires the routes. metrics may be nil to leave /metrics unmounted.
func NewServer(svc Service, port int, metrics http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		svc:    svc,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.router.HandleFunc("/predict/{model}", s.handlePredict).Methods(http.MethodPost)
	s.router.HandleFunc("/encode/{model}", s.handleEncode).Methods(http.MethodPost)
	s.router.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/predict", s.handleStream)
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	req := PredictRequest{
		Model:     mux.Vars(r)["model"],
		RequestID: r.Header.Get(requestIDHeader),
	}
	if err := json.NewDecoder(r.Body).Decode(&req.Observation); err != nil {
		writeError(w, http.StatusBadRequest, req.RequestID, fmt.Errorf("invalid request: %w", err))
		return
	}

	res, err := s.svc.Predict(r.Context(), req)
	if err != nil {
		id := req.RequestID
		if res.RequestID != "" {
			id = res.RequestID
		}
		writeError(w, StatusFor(err), id, err)
		return
	}

	w.Header().Set(requestIDHeader, res.RequestID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	model := mux.Vars(r)["model"]

	var obs features.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		writeError(w, http.StatusBadRequest, "", fmt.Errorf("invalid request: %w", err))
		return
	}

	enc, err := s.svc.Encode(model, obs)
	if err != nil {
		writeError(w, StatusFor(err), "", err)
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Options())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	models := s.svc.Models()
	status := http.StatusOK
	state := "ok"
	if len(models) == 0 {
		status = http.StatusServiceUnavailable
		state = "no models loaded"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"models": len(models),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Models())
}

// handleStream serves one prediction per incoming PredictRequest message
// until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	send := func(msg StreamMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	log.Debug().Str("remote", r.RemoteAddr).Msg("prediction stream opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("prediction stream closed unexpectedly")
			}
			return
		}

		var req PredictRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := send(StreamMessage{Type: "error", Error: "invalid request: " + err.Error(), Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		msg := StreamMessage{Type: "result", RequestID: req.RequestID}
		res, err := s.svc.Predict(ctx, req)
		if err != nil {
			msg.Type = "error"
			msg.Error = err.Error()
			msg.Status = StatusFor(err)
		} else {
			msg.RequestID = res.RequestID
			msg.Result = &res
		}
		if err := send(msg); err != nil {
			log.Debug().Err(err).Msg("prediction stream write failed")
			return
		}
	}
}

// StatusFor maps a prediction error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, features.ErrMissingFeature),
		errors.Is(err, features.ErrUnknownOrdinalCategory),
		errors.Is(err, features.ErrUnknownCategory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrModelUnavailable), errors.Is(err, ErrBadOutput),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: requestID})
}
