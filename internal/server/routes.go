package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/metrics"
	"github.com/at-ishikawa/mindbank/internal/security"
	"github.com/at-ishikawa/mindbank/internal/speech"
)

// ServiceName is the fully-qualified name of the RPC service.
const ServiceName = "mindbank.v1.MindBankService"

// Procedure returns the Connect procedure path of an RPC method.
func Procedure(method string) string {
	return "/" + ServiceName + "/" + method
}

// rateLimitedMethods call paid AI endpoints.
var rateLimitedMethods = []string{"StartCapture", "GenerateInsight", "Translate", "Speak"}

type RouterOptions struct {
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Router is the HTTP handler of the server and the rate limiter it owns.
type Router struct {
	http.Handler
	RateLimiter *RateLimiter
}

func NewRouter(h *Handler, opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limited := make([]string, 0, len(rateLimitedMethods))
	for _, m := range rateLimitedMethods {
		limited = append(limited, Procedure(m))
	}
	limiter := NewRateLimiter(opts.RateLimit, 5*time.Minute, limited...)

	handlerOptions := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(
			newAuthInterceptor(h.issuer, Procedure("SignInAnonymously")),
			limiter,
		),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(opts.CORS.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}
	r.Get("/audio/{key}", h.serveAudio)
	r.Get("/covers", h.serveCover)

	handle := func(method string, handler http.Handler) {
		r.Handle(Procedure(method), handler)
	}
	handle("SignInAnonymously", connect.NewUnaryHandler(Procedure("SignInAnonymously"), h.SignInAnonymously, handlerOptions...))
	handle("SignOut", connect.NewUnaryHandler(Procedure("SignOut"), h.SignOut, handlerOptions...))
	handle("GetLibrary", connect.NewUnaryHandler(Procedure("GetLibrary"), h.GetLibrary, handlerOptions...))
	handle("Subscribe", connect.NewServerStreamHandler(Procedure("Subscribe"), h.Subscribe, handlerOptions...))
	handle("StartCapture", connect.NewUnaryHandler(Procedure("StartCapture"), h.StartCapture, handlerOptions...))
	handle("SetInput", connect.NewUnaryHandler(Procedure("SetInput"), h.SetInput, handlerOptions...))
	handle("ToggleDictation", connect.NewUnaryHandler(Procedure("ToggleDictation"), h.ToggleDictation, handlerOptions...))
	handle("AppendTranscript", connect.NewUnaryHandler(Procedure("AppendTranscript"), h.AppendTranscript, handlerOptions...))
	handle("EditDraft", connect.NewUnaryHandler(Procedure("EditDraft"), h.EditDraft, handlerOptions...))
	handle("AttachBook", connect.NewUnaryHandler(Procedure("AttachBook"), h.AttachBook, handlerOptions...))
	handle("CommitDraft", connect.NewUnaryHandler(Procedure("CommitDraft"), h.CommitDraft, handlerOptions...))
	handle("DiscardDraft", connect.NewUnaryHandler(Procedure("DiscardDraft"), h.DiscardDraft, handlerOptions...))
	handle("GetCapture", connect.NewUnaryHandler(Procedure("GetCapture"), h.GetCapture, handlerOptions...))
	handle("UpdateItem", connect.NewUnaryHandler(Procedure("UpdateItem"), h.UpdateItem, handlerOptions...))
	handle("ToggleFavorite", connect.NewUnaryHandler(Procedure("ToggleFavorite"), h.ToggleFavorite, handlerOptions...))
	handle("DeleteItem", connect.NewUnaryHandler(Procedure("DeleteItem"), h.DeleteItem, handlerOptions...))
	handle("BulkClear", connect.NewUnaryHandler(Procedure("BulkClear"), h.BulkClear, handlerOptions...))
	handle("ListBooks", connect.NewUnaryHandler(Procedure("ListBooks"), h.ListBooks, handlerOptions...))
	handle("AddNote", connect.NewUnaryHandler(Procedure("AddNote"), h.AddNote, handlerOptions...))
	handle("GenerateInsight", connect.NewUnaryHandler(Procedure("GenerateInsight"), h.GenerateInsight, handlerOptions...))
	handle("SearchBooks", connect.NewUnaryHandler(Procedure("SearchBooks"), h.SearchBooks, handlerOptions...))
	handle("Translate", connect.NewUnaryHandler(Procedure("Translate"), h.Translate, handlerOptions...))
	handle("ClearTranslation", connect.NewUnaryHandler(Procedure("ClearTranslation"), h.ClearTranslation, handlerOptions...))
	handle("Speak", connect.NewUnaryHandler(Procedure("Speak"), h.Speak, handlerOptions...))
	handle("StopSpeaking", connect.NewUnaryHandler(Procedure("StopSpeaking"), h.StopSpeaking, handlerOptions...))
	handle("LookupWord", connect.NewUnaryHandler(Procedure("LookupWord"), h.LookupWord, handlerOptions...))
	handle("ShareItem", connect.NewUnaryHandler(Procedure("ShareItem"), h.ShareItem, handlerOptions...))

	return &Router{Handler: r, RateLimiter: limiter}
}

func audioPath(key string) string {
	return "/audio/" + key
}

// serveAudio returns cached audio bytes. Audio that was evicted has to be
// requested again through Speak.
func (h *Handler) serveAudio(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	audio, ok := h.speech.Lookup(key)
	if !ok {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = speech.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = w.Write(audio.Data)
}

// serveCover proxies a cover thumbnail so clients never fetch user-supplied
// URLs themselves.
func (h *Handler) serveCover(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	cover, err := h.covers.Fetch(r.Context(), rawURL)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, security.ErrBlockedURL):
			status = http.StatusBadRequest
		case errors.Is(err, security.ErrNotAnImage), errors.Is(err, security.ErrCoverTooLarge):
			status = http.StatusUnprocessableEntity
		}
		slog.Default().Warn("cover fetch failed", "url", rawURL, "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", cover.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(cover.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(cover.Data)
}
