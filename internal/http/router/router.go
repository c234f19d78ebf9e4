package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agrodoc/internal/http/handlers"
	"agrodoc/internal/http/middleware"
	"agrodoc/internal/logger"
	"agrodoc/internal/metrics"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
	"agrodoc/internal/workflow"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Controller  *workflow.Controller
	Sessions    *session.Store
	Cookies     *security.SessionStore
	Metrics     *metrics.Metrics
	MetricsPath string // empty disables the scrape endpoint
	Logger      *slog.Logger
}

func Setup(d Deps) *mux.Router {
	log := d.Logger
	if log == nil {
		log = logger.Module("http")
	}

	r := mux.NewRouter()
	r.Use(middleware.Instrument(d.Metrics, log))

	if d.MetricsPath != "" && d.Metrics != nil {
		r.Handle(d.MetricsPath, promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	authHandler := handlers.NewAuthHandler(d.Controller)
	pageHandler := handlers.NewPageHandler(d.Controller)
	analysisHandler := handlers.NewAnalysisHandler(d.Controller)
	chatbotHandler := handlers.NewChatbotHandler(d.Controller)
	reviewHandler := handlers.NewReviewHandler(d.Controller)
	accountHandler := handlers.NewAccountHandler(d.Controller)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Sessions(d.Sessions, d.Cookies, d.Metrics, log))

	api.HandleFunc("/session", pageHandler.Session).Methods("GET")
	api.HandleFunc("/pages/{page}", pageHandler.Navigate).Methods("GET", "POST")
	api.HandleFunc("/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	api.HandleFunc("/notifications", pageHandler.Notifications).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.RequireAuth)

	protected.HandleFunc("/notifications/dismiss", pageHandler.DismissNotifications).Methods("POST")

	protected.HandleFunc("/upload", analysisHandler.Upload).Methods("POST")
	protected.HandleFunc("/analyze", analysisHandler.Analyze).Methods("POST")
	protected.HandleFunc("/analysis/latest", analysisHandler.Latest).Methods("GET")
	protected.HandleFunc("/analysis/view", analysisHandler.ViewResults).Methods("POST")
	protected.HandleFunc("/analysis/home", analysisHandler.BackHome).Methods("POST")

	protected.HandleFunc("/history", analysisHandler.History).Methods("GET")
	protected.HandleFunc("/history/next", analysisHandler.NextPage).Methods("POST")
	protected.HandleFunc("/history/prev", analysisHandler.PrevPage).Methods("POST")
	protected.HandleFunc("/predictions/{id:[0-9]+}/image", analysisHandler.Image).Methods("GET")

	protected.HandleFunc("/chatbot", chatbotHandler.Show).Methods("GET")
	protected.HandleFunc("/chatbot/plant", chatbotHandler.SelectPlant).Methods("POST")
	protected.HandleFunc("/chatbot/condition", chatbotHandler.SelectCondition).Methods("POST")
	protected.HandleFunc("/chatbot/back", chatbotHandler.Back).Methods("POST")
	protected.HandleFunc("/chatbot/new", chatbotHandler.Restart).Methods("POST")

	protected.HandleFunc("/reviews", reviewHandler.List).Methods("GET")
	protected.HandleFunc("/reviews", reviewHandler.Submit).Methods("POST")

	protected.HandleFunc("/account/name", accountHandler.UpdateName).Methods("POST")
	protected.HandleFunc("/account/password", accountHandler.ChangePassword).Methods("POST")
	protected.HandleFunc("/account/phone", accountHandler.RequestPhoneCode).Methods("POST")
	protected.HandleFunc("/account/phone/verify", accountHandler.VerifyPhoneCode).Methods("POST")
	protected.HandleFunc("/account/notifications", accountHandler.SetNotifications).Methods("POST")
	protected.HandleFunc("/account", accountHandler.Delete).Methods("DELETE")

	return r
}
