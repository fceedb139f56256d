package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/service"
	"smartsurvey/internal/transport/rest/handler"
	"smartsurvey/internal/transport/rest/middleware"
	"smartsurvey/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	SurveyService  *service.SurveyService
	SessionService *service.SessionService
	WSHub          *ws.Hub
	Log            *logger.Logger
	CORSOrigins    string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	log := c.Log
	if log == nil {
		log = logger.NewNop()
	}

	authHandler := handler.NewAuthHandler(c.AuthService)
	surveyHandler := handler.NewSurveyHandler(c.SurveyService)
	sessionHandler := handler.NewSessionHandler(c.SurveyService, c.SessionService)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(corsMiddleware(c.CORSOrigins))
	r.Use(accessLog(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes must be registered before the host subrouter
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/public/surveys/{surveyId}", sessionHandler.GetSurvey).Methods("GET", "OPTIONS")
	v1.HandleFunc("/public/surveys/{surveyId}/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}", sessionHandler.Current).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{sessionId}/answers", sessionHandler.SubmitAnswer).Methods("POST", "OPTIONS")

	// WebSocket routes (token in query param for observers)
	if c.WSHub != nil {
		wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SurveyService, c.SessionService, log)
		v1.HandleFunc("/ws/surveys/{surveyId}", wsHandler.ObserveSurvey).Methods("GET")
		v1.HandleFunc("/ws/sessions/{sessionId}", wsHandler.FollowSession).Methods("GET")
	}

	hostRoutes := v1.NewRoute().Subrouter()
	hostRoutes.Use(authMW.RequireHost)

	hostRoutes.HandleFunc("/surveys", surveyHandler.Create).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/surveys", surveyHandler.List).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Get).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Update).Methods("PUT", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Delete).Methods("DELETE", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/publish", surveyHandler.Publish).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/status", surveyHandler.SetStatus).Methods("PUT", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/questions/order", surveyHandler.Reorder).Methods("PUT", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/questions/{questionId}", surveyHandler.DeleteQuestion).Methods("DELETE", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/rules", surveyHandler.AddRule).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/generate", surveyHandler.Generate).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/responses", surveyHandler.Responses).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/live", surveyHandler.Live).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-Match")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// websocket upgrades need the raw writer for hijacking
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
