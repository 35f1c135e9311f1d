package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	feeder  *feeder.Service
	store   store.Store
	webpush *webpush.Options
	log     zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(f *feeder.Service, s store.Store, webpushOptions *webpush.Options, log zerolog.Logger) *Handler {
	return &Handler{
		feeder:  f,
		store:   s,
		webpush: webpushOptions,
		log:     log,
	}
}
