package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/auth"
	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/metrics"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
	"github.com/spendsense/operator-console/internal/review"
)

// RunOptions configures the dashboard.
type RunOptions struct {
	Config  *config.Config
	Service *review.Service
	Tokens  *auth.Store
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// live owns the realtime channels of one dashboard session. The operator
// channel lives for the whole session; the per-user channels follow the
// focused user.
type live struct {
	cfg     *config.Config
	tokens  *auth.Store
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	send    func(tea.Msg)

	mu       sync.Mutex
	operator *realtime.Channel
	perUser  []*realtime.Channel
	userID   string
	stopped  bool

	// Focus requests are applied by one goroutine, latest wins.
	focusMu   sync.Mutex
	wantUser  string
	focusWake chan struct{}
}

func (l *live) options() []realtime.Option {
	opts := []realtime.Option{realtime.WithLogger(l.logger), realtime.WithMetrics(l.metrics)}
	if l.tokens != nil {
		opts = append(opts, realtime.WithTokens(l.tokens))
	}
	return opts
}

// wire forwards a channel's events and state transitions into the program.
func (l *live) wire(ch *realtime.Channel) {
	name := ch.Name()
	ch.OnEvent(func(ev realtime.Event) {
		l.send(RealtimeEventMsg{Channel: name, Event: ev})
	})
	ch.OnStateChange(func(st realtime.State) {
		l.send(ChannelStateMsg{Channel: name, State: st})
	})
}

func (l *live) start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.operator = realtime.OperatorChannel(l.cfg, l.options()...)
	l.wire(l.operator)
	l.operator.Connect()
}

// focus replaces the per-user channels with ones for userID.
func (l *live) focus(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || userID == l.userID {
		return
	}
	for _, ch := range l.perUser {
		ch.Disconnect()
	}
	l.perUser = nil
	l.userID = userID
	if userID == "" {
		return
	}

	l.logger.WithField("user_id", userID).Debug("following user channels")
	l.perUser = []*realtime.Channel{
		realtime.SubscriptionChannel(l.cfg, userID, l.options()...),
		realtime.FeedbackChannel(l.cfg, userID, l.options()...),
	}
	for _, ch := range l.perUser {
		l.wire(ch)
		ch.Connect()
	}
}

// requestFocus records userID as the user to follow and wakes the focus
// loop. It never blocks, so it is safe to call from the program's Update.
func (l *live) requestFocus(userID string) {
	l.focusMu.Lock()
	l.wantUser = userID
	l.focusMu.Unlock()
	select {
	case l.focusWake <- struct{}{}:
	default:
	}
}

// focusLoop applies focus requests in order until ctx ends.
func (l *live) focusLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.focusWake:
			l.focusMu.Lock()
			userID := l.wantUser
			l.focusMu.Unlock()
			l.focus(userID)
		}
	}
}

// reconnect restarts every channel that gave up.
func (l *live) reconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.all() {
		if ch.State() == realtime.StateFailed {
			l.logger.WithField("channel", ch.Name()).Info("reconnecting")
			ch.Connect()
		}
	}
}

func (l *live) all() []*realtime.Channel {
	out := make([]*realtime.Channel, 0, 1+len(l.perUser))
	if l.operator != nil {
		out = append(out, l.operator)
	}
	return append(out, l.perUser...)
}

func (l *live) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for _, ch := range l.all() {
		ch.Disconnect()
	}
}

// Run starts the dashboard and blocks until the operator quits or ctx ends.
func Run(ctx context.Context, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	state := NewAppState(opts.Config.APIOrigin)
	if opts.Tokens != nil {
		if claims, err := opts.Tokens.Claims(); err == nil {
			state.SetOperator(claims.Subject, claims.ExpiresAt)
		}
	}

	l := &live{
		cfg:       opts.Config,
		tokens:    opts.Tokens,
		logger:    logger,
		metrics:   opts.Metrics,
		focusWake: make(chan struct{}, 1),
	}

	app := NewApp(Options{
		Service:       opts.Service,
		State:         state,
		Logger:        logger,
		DefaultStatus: models.ReviewStatus(opts.Config.Queue.DefaultStatus),
		QueueLimit:    opts.Config.Queue.Limit,
		OnUserFocus:   l.requestFocus,
		OnReconnect:   func() { go l.reconnect() },
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	l.send = p.Send

	changes, unsubscribe := opts.Service.Cache().Subscribe("")
	defer unsubscribe()
	go func() {
		for key := range changes {
			p.Send(CacheChangedMsg{Key: key})
		}
	}()

	if opts.Tokens != nil && !opts.Tokens.FromEnvironment() {
		go func() {
			err := opts.Tokens.Watch(ctx, func() {
				if claims, err := opts.Tokens.Claims(); err == nil {
					state.SetOperator(claims.Subject, claims.ExpiresAt)
				}
				p.Send(TokenChangedMsg{})
			})
			if err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("token file watch stopped")
			}
		}()
	}

	// Channel callbacks block in p.Send until the program loop is running.
	go l.start()
	go l.focusLoop(ctx)
	defer l.stop()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
