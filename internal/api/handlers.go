package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/api/presenter"
	"github.com/ctyano/athenz-auth-core/internal/buildinfo"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// handleConfirmInstance processes certificate issuance confirmation requests.
func (s *Server) handleConfirmInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var confirmation core.InstanceConfirmation
	if err := DecodePayload(r, &confirmation, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode confirmation request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := s.confirmations.ConfirmInstance(ctx, &confirmation)
	if err != nil {
		logger.Warn().Err(err).
			Str("provider", confirmation.Provider).
			Msg("instance confirmation rejected")
		presenter.Err(w, r, err, "instance confirmation rejected")
		return
	}

	logger.Info().
		Str("provider", result.Provider).
		Msg("instance confirmed")

	presenter.JSON(w, r, result, http.StatusOK)
}

// handleRefreshInstance processes certificate refresh requests.
func (s *Server) handleRefreshInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var confirmation core.InstanceConfirmation
	if err := DecodePayload(r, &confirmation, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode refresh request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := s.confirmations.RefreshInstance(ctx, &confirmation)
	if err != nil {
		logger.Warn().Err(err).
			Str("provider", confirmation.Provider).
			Msg("instance refresh rejected")
		presenter.Err(w, r, err, "instance refresh rejected")
		return
	}

	presenter.JSON(w, r, result, http.StatusOK)
}
