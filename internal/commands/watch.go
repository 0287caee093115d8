package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
)

func newWatchCmd() *cobra.Command {
	var (
		users       []string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log live review activity (headless)",
		Long: `Connect to the realtime channels and log every event until interrupted.

The operator channel is always watched. --user adds the subscription and
feedback channels of one user and may be repeated. --metrics-addr serves
Prometheus metrics for the session, e.g. --metrics-addr :9090.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, e, users, metricsAddr)
		},
	}

	cmd.Flags().StringArrayVarP(&users, "user", "u", nil, "Also watch this user's channels (repeatable)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runWatch(ctx context.Context, e *env, users []string, metricsAddr string) error {
	channelOpts := func(name, path string) []realtime.Option {
		return []realtime.Option{
			realtime.WithLogger(logging.WithChannel(e.logger, name, e.cfg.WebSocketURL(path))),
			realtime.WithMetrics(e.metrics),
			realtime.WithTokens(e.tokens),
		}
	}

	channels := []*realtime.Channel{
		realtime.OperatorChannel(e.cfg, channelOpts(realtime.ChannelOperator, realtime.OperatorPath)...),
	}
	for _, u := range users {
		channels = append(channels,
			realtime.SubscriptionChannel(e.cfg, u, channelOpts(realtime.ChannelSubscriptions, realtime.SubscriptionsPath(u))...),
			realtime.FeedbackChannel(e.cfg, u, channelOpts(realtime.ChannelFeedback, realtime.FeedbackPath(u))...),
		)
	}

	failed := make(chan string, len(channels))
	for _, ch := range channels {
		name := ch.Name()
		log := e.logger.WithField("channel", name)
		ch.OnEvent(func(ev realtime.Event) {
			log.WithFields(eventFields(ev)).Info(ev.EventType())
		})
		ch.OnStateChange(func(st realtime.State) {
			log.WithField("state", st.String()).Info("channel state")
			if st == realtime.StateFailed {
				failed <- name
			}
		})
	}

	var srv *http.Server
	if metricsAddr != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", e.metrics.Handler()).Methods(http.MethodGet)
		srv = &http.Server{Addr: metricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			e.logger.WithField("addr", metricsAddr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	for _, ch := range channels {
		ch.Connect()
	}
	e.logger.WithField("channels", len(channels)).Info("watching live events, Ctrl+C to stop")

	var err error
	select {
	case <-ctx.Done():
	case name := <-failed:
		err = fmt.Errorf("realtime channel %s gave up reconnecting", name)
	}

	for _, ch := range channels {
		ch.Disconnect()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return err
}

func eventFields(ev realtime.Event) logrus.Fields {
	switch ev := ev.(type) {
	case models.RecommendationStatusChanged:
		return logrus.Fields{
			"recommendation_id": ev.RecommendationID,
			"user_id":           ev.UserID,
			"action":            ev.Action,
		}
	case models.SubscriptionCancelled:
		return logrus.Fields{
			"user_id":  ev.UserID,
			"merchant": ev.MerchantName,
		}
	case models.RecommendationFeedback:
		return logrus.Fields{
			"recommendation_id": ev.RecommendationID,
			"user_id":           ev.UserID,
			"feedback":          ev.Verdict,
		}
	}
	return logrus.Fields{}
}
