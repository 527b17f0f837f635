// Package metrics centralizes the metric names and tag shapes emitted for
// job lifecycle transitions so dashboards see a consistent schema.
package metrics

import (
	"time"

	obserrors "github.com/assistly/llm-jobs/internal/observability/errors"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures details about a job lifecycle transition for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Reason     string
	Duration   time.Duration
	Err        error
}

// EmitJobTransition emits standardised job lifecycle metrics.
func EmitJobTransition(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
