package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_messages_sent_total",
		Help: "Total chat messages written to the store.",
	})
	MessageSendFail = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_message_send_fail_total",
		Help: "Total chat message writes that failed.",
	})

	FeedBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_feed_batches_total",
		Help: "Total subscription batches applied to the feed merger.",
	})
	FeedRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_feed_refresh_total",
		Help: "Total full-refresh signals emitted by the merger.",
	})
	FeedAppends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_feed_append_total",
		Help: "Total incremental-append signals emitted by the merger.",
	})
	SubscribeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_subscribe_errors_total",
		Help: "Total subscription delivery errors (dropped, list kept).",
	})

	SignInFail = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatapp_signin_fail_total",
		Help: "Total failed sign-in attempts.",
	})

	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatapp_active_subscriptions",
		Help: "Currently open live query subscriptions.",
	})
)

func Register() {
	prometheus.MustRegister(
		MessagesSent, MessageSendFail,
		FeedBatches, FeedRefreshes, FeedAppends, SubscribeErrors,
		SignInFail,
		ActiveSubscriptions,
	)
}
