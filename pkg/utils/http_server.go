package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// ShutdownTimeout bounds a graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// ListenHTTP starts s on its configured address.
// It returns an error channel, a force closer function, a graceful closer function, and any setup error.
// The error channel receives a serve error, if any, and is closed when the server stops.
//
// Usage:
//
//	errChan, closer, gracefulCloser, err := ListenHTTP(srv, logger)
//	if err != nil {
//		return err
//	}
//	defer gracefulCloser()
func ListenHTTP(s *http.Server, log logger.Logger) (chan error, func(), func(), error) {
	lis, err := net.Listen("tcp", s.Addr) //nolint:noctx // http.Server manages listener lifecycle
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	errorChannel := make(chan error, 1)
	go func() {
		defer close(errorChannel)
		log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	gracefulCloser := func() {
		log.Info("Gracefully closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			log.Error("HTTP server shutdown error", logger.ErrorField(err))
		}
	}
	closer := func() {
		log.Info("Forcefully closing HTTP server")
		if err := s.Close(); err != nil {
			log.Error("HTTP server close error", logger.ErrorField(err))
		}
	}
	return errorChannel, closer, gracefulCloser, nil
}
