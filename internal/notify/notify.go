// Package notify forwards pipeline lifecycle events to external
// notification services (Telegram, Discord, Slack, generic webhooks, ...)
// through github.com/nicholas-fedor/shoutrrr. It is entirely optional: a
// Notifier built from a NotifyConfig with no URLs is a no-op.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/audiorelay/streamcore/internal/conf"
	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
)

// Event describes a pipeline transition worth notifying someone about.
// Only the Failed state is wired to Notify, by the engine's delegate; the
// shape accommodates future use (e.g. a Playing notification on resume
// after a long bounce).
type Event struct {
	State    string // the pipeline state that triggered this notification
	URL      string // stream URL, for context
	Message  string // human-readable description
	Category string // streamerrors.ErrorCategory of the underlying cause, if any
}

// Notifier sends Events to every shoutrrr URL configured in NotifyConfig.
type Notifier struct {
	sender  *router.ServiceRouter
	retries int
}

// New builds a Notifier from cfg. If cfg is disabled or has no URLs, the
// returned Notifier's Notify is a no-op and New never returns an error.
func New(cfg conf.NotifyConfig) (*Notifier, error) {
	if !cfg.Enabled || len(cfg.URLs) == 0 {
		return &Notifier{}, nil
	}
	sender, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		return nil, streamerrors.New(fmt.Errorf("create shoutrrr sender: %w", err)).
			Component("notify").
			Category(streamerrors.CategoryNotify).
			Build()
	}
	return &Notifier{sender: sender, retries: 2}, nil
}

// Notify delivers ev to every configured service. Delivery failures are
// logged but never returned to the caller: a broken notification channel
// must not affect playback.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n == nil || n.sender == nil {
		return
	}

	log := logging.ForService("notify")
	params := &types.Params{}
	params.SetTitle(fmt.Sprintf("streamcore: %s", ev.State))

	backoff := 500 * time.Millisecond
	var lastErrs []error
	for attempt := 0; attempt <= n.retries; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lastErrs = n.sender.Send(ev.Message, params)
		if allNil(lastErrs) {
			return
		}

		if attempt < n.retries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	if log != nil {
		log.Warn("notification delivery failed", "state", ev.State, "url", ev.URL, "errors", joinErrs(lastErrs))
	}
}

func allNil(errs []error) bool {
	for _, err := range errs {
		if err != nil {
			return false
		}
	}
	return true
}

func joinErrs(errs []error) string {
	msg := ""
	for i, err := range errs {
		if err == nil {
			continue
		}
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return msg
}
