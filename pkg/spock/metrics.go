package spock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chenesan/SpockBot/internal/proto"
)

var (
	connectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spock_connects_total",
			Help: "Total number of successful connects",
		},
	)

	disconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spock_disconnects_total",
			Help: "Total number of connection resets by cause",
		},
		[]string{"cause"},
	)

	framesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spock_frames_decoded_total",
			Help: "Total number of inbound frames decoded",
		},
		[]string{"state"},
	)

	framesEncodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spock_frames_encoded_total",
			Help: "Total number of outbound frames encoded",
		},
		[]string{"state", "compressed"},
	)

	bytesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spock_bytes_received_total",
			Help: "Total bytes received from the socket",
		},
	)

	bytesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spock_bytes_sent_total",
			Help: "Total bytes written to the socket",
		},
	)
)

func recordConnect() {
	connectsTotal.Inc()
}

func recordDisconnect(cause string) {
	disconnectsTotal.WithLabelValues(cause).Inc()
}

func recordFrameDecoded(state proto.State) {
	framesDecodedTotal.WithLabelValues(state.String()).Inc()
}

func recordFrameEncoded(state proto.State, compressed bool) {
	label := "false"
	if compressed {
		label = "true"
	}
	framesEncodedTotal.WithLabelValues(state.String(), label).Inc()
}

func recordBytesReceived(n int) {
	bytesReceivedTotal.Add(float64(n))
}

func recordBytesSent(n int) {
	bytesSentTotal.Add(float64(n))
}
