package credibility

import "errors"

var (
	// ErrNoMetrics is returned when a scorer is built without metrics.
	ErrNoMetrics = errors.New("at least one metric is required")

	// ErrInvalidWeight is returned for a metric weight that is not positive.
	ErrInvalidWeight = errors.New("metric weight must be greater than 0")

	// ErrDuplicateMetric is returned when two metrics share a name.
	ErrDuplicateMetric = errors.New("duplicate metric name")

	// ErrScoreOutOfRange is reported when a metric returns a score outside [0, 3].
	ErrScoreOutOfRange = errors.New("score out of range")
)
