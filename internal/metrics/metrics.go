// Package metrics 交易执行相关指标
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	tradesTotal           = metrics.NewCounter("trades_total")
	tradesSucceeded       = metrics.NewCounter("trades_succeeded_total")
	tradesFailed          = metrics.NewCounter("trades_failed_total")
	tradesSimulated       = metrics.NewCounter("trades_simulated_total")
	assembleFailures      = metrics.NewCounter("assemble_failures_total")
	confirmationTimeouts  = metrics.NewCounter("confirmation_timeouts_total")
	journalFailures       = metrics.NewCounter("journal_failures_total")
	blockhashStreamUpdate = metrics.NewCounter("blockhash_stream_updates_total")
)

func IncTrades() {
	tradesTotal.Inc()
}

func IncTradesSucceeded() {
	tradesSucceeded.Inc()
}

func IncTradesFailed() {
	tradesFailed.Inc()
}

func IncTradesSimulated() {
	tradesSimulated.Inc()
}

func IncAssembleFailures() {
	assembleFailures.Inc()
}

func IncConfirmationTimeouts() {
	confirmationTimeouts.Inc()
}

func IncJournalFailures() {
	journalFailures.Inc()
}

func IncBlockhashStreamUpdates() {
	blockhashStreamUpdate.Inc()
}

// IncProviderSend result: ok / timeout / rate_limited / rpc / http / transport
func IncProviderSend(provider, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`provider_send_total{provider=%q,result=%q}`, provider, result)).Inc()
}

func ObserveProviderLatency(provider string, d time.Duration) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`provider_send_duration_seconds{provider=%q}`, provider)).Update(d.Seconds())
}

// WritePrometheus 输出全部指标
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
