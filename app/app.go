package app

import (
	"context"
	"errors"

	"github.com/go-chi/oauth"
	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/config"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/images"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/queue"
	"github.com/mbolis/fieldsurvey/runs"
	"github.com/mbolis/fieldsurvey/submit"
)

type App struct {
	*oauth.BearerServer
	config.Config

	Sessions  *database.Sessions
	Cache     *database.KV
	Backend   *client.Client
	Queue     *queue.Queue
	Runs      *runs.Registry
	Submitter *submit.Submitter
	Replayer  *submit.Replayer
}

// Client returns a backend client acting on behalf of the session.
func (app App) Client(session database.StoredSession) *client.Client {
	return app.Backend.WithToken(session.Token)
}

// Transport is what submissions use for the session. Pictures are scaled
// down unless the account uploads at full resolution.
func (app App) Transport(session database.StoredSession) submit.Transport {
	loader := images.FileLoader{MaxSide: images.MaxSide}
	if session.HighResolutionUploads {
		loader.MaxSide = 0
	}
	return submit.Transport{API: app.Client(session), Images: loader}
}

// ScheduledFlush flushes the offline queue with the session of whoever
// logged in last. It does nothing when nobody ever did, or when a flush is
// already running.
func (app App) ScheduledFlush(ctx context.Context) {
	session, err := app.Sessions.Latest(ctx)
	if errors.Is(err, database.ErrNoSession) {
		log.Debug("cron.flush: no session yet")
		return
	}
	if err != nil {
		log.Errorf("cron.flush.session: %v", err)
		return
	}

	report, err := app.Replayer.Flush(ctx, app.Transport(session), nil)
	switch {
	case errors.Is(err, submit.ErrFlushInProgress):
		log.Debug("cron.flush: already running")
	case err != nil:
		log.Errorf("cron.flush: %v", err)
	case report.Err != nil:
		log.Warnf("cron.flush: %d of %d surveys failed", report.Failed, report.Surveys)
	}
}
