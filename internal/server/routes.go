package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	svc := deps.Service

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Manhunt API", "/openapi.json", "/docs"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/help", handleHelp(svc))
		r.Post("/start", handleStart(logger, svc))

		r.Post("/onboarding", handleStartOnboarding(logger, svc))
		r.Post("/onboarding/input", handleOnboardingInput(logger, svc))
		r.With(personMiddleware).Delete("/onboarding/{personID}", handleCancelOnboarding(logger, svc))

		r.Post("/caught", handleCaught(logger, svc))

		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", handleGetGame(logger, svc))
			r.Get("/broadcasts", handleListBroadcasts(logger, svc, deps.Broadcasts))
			r.Post("/join", handleJoin(logger, svc))
			r.Post("/leave", handleLeave(logger, svc))
			r.Post("/cancel", handleCancel(logger, svc))
		})

		r.Route("/people/{personID}", func(r chi.Router) {
			r.Use(personMiddleware)
			r.Put("/location", handleReportLocation(logger, svc))
			r.Get("/game", handleActiveGame(logger, svc))
			r.Get("/events", handleEvents(deps.Broker))
			r.Get("/ws", handleStreamWS(logger, deps.Broker))
		})
	})
}
