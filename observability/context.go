package observability

import "context"

type metricsKeyType struct{}

var metricsKeyVal metricsKeyType

func NewContextWithMetrics(ctx context.Context, metrics *Metrics) context.Context {
	return context.WithValue(ctx, metricsKeyVal, metrics)
}

func getMetricsFromContext(ctx context.Context) (*Metrics, bool) {
	v := ctx.Value(metricsKeyVal)
	if v == nil {
		return nil, false
	}

	metrics, ok := v.(*Metrics)

	return metrics, ok && metrics != nil
}
