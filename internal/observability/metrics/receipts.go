// Package metrics provides standardised metric emission for receipt
// lifecycle events.
package metrics

import (
	"time"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
	"github.com/ark074/SecureWipe3/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ReceiptMetric captures a receipt lifecycle event for metric emission.
type ReceiptMetric struct {
	Stage    apperrors.Stage
	Result   string
	Duration time.Duration
	Err      error
}

// EmitReceiptLifecycle emits receipt lifecycle counters and timings.
func EmitReceiptLifecycle(sink statsd.Sink, in ReceiptMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  string(in.Stage),
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if code := apperrors.GetCode(in.Err); code != "" {
			tags["error_code"] = string(code)
		}
	}

	sink.Count("receipt.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("receipt.duration", in.Duration, tags)
	}
}
