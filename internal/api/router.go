package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/api/handlers"
	mw "github.com/hindsight-ai/hindsight/internal/api/middleware"
	"github.com/hindsight-ai/hindsight/internal/config"
	"go.uber.org/zap"
)

// NewRouter mounts the HTTP shell over a Hindsight engine instance.
func NewRouter(engine *hindsight.Hindsight, logger *zap.Logger) *chi.Mux {
	bankHandler := handlers.NewBankHandler(engine)
	memoryHandler := handlers.NewMemoryHandler(engine)
	entityHandler := handlers.NewEntityHandler(engine)
	operationHandler := handlers.NewOperationHandler(engine)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(mw.RequestID)
	r.Use(mw.Logging(logger))
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/banks", func(r chi.Router) {
		r.Post("/", bankHandler.Create)
		r.Get("/", bankHandler.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", bankHandler.Get)
			r.Patch("/", bankHandler.Update)
			r.Delete("/", bankHandler.Delete)
			r.Get("/stats", bankHandler.Stats)

			r.Post("/retain", memoryHandler.Retain)
			r.Post("/retain-batch", memoryHandler.RetainBatch)
			r.Post("/recall", memoryHandler.Recall)

			r.Get("/memories", memoryHandler.List)
			r.Get("/memories/{memoryId}", memoryHandler.Get)
			r.Delete("/memories/{memoryId}", memoryHandler.Delete)

			r.Get("/entities", entityHandler.List)
			r.Get("/entities/{entityId}", entityHandler.Get)
			r.Patch("/entities/{entityId}", entityHandler.Update)
		})
	})

	r.Route("/operations", func(r chi.Router) {
		r.Get("/{id}", operationHandler.Get)
		r.Delete("/{id}", operationHandler.Cancel)
	})

	return r
}
