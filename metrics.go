package boxtree

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/peterstace/boxtree"

// Query type attribute values.
const (
	queryIntersecting = "intersecting"
	queryContaining   = "containing"
	queryContained    = "contained"
	queryPoint        = "point"
	queryLine         = "line"
	queryCustom       = "custom"
)

// queryAttrs holds prebuilt attribute sets so the query path does not
// allocate them per call.
var queryAttrs = func() map[string]metric.AddOption {
	m := make(map[string]metric.AddOption)
	for _, q := range []string{queryIntersecting, queryContaining, queryContained, queryPoint, queryLine, queryCustom} {
		m[q] = metric.WithAttributeSet(attribute.NewSet(attribute.String("query_type", q)))
	}
	return m
}()

// instruments are the metrics recorded by one Index.
type instruments struct {
	buildLatency  metric.Float64Histogram
	buildTotal    metric.Int64Counter
	treeNodes     metric.Int64Histogram
	invalidations metric.Int64Counter
	queries       metric.Int64Counter
}

// newInstruments creates the index instruments from meter. If any instrument
// cannot be created the index records nothing.
func newInstruments(meter metric.Meter, logger *slog.Logger) *instruments {
	ins, err := createInstruments(meter)
	if err != nil {
		logger.Warn("box tree metrics disabled", slog.String("error", err.Error()))
		ins, _ = createInstruments(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return ins
}

func createInstruments(meter metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)
	ins.buildLatency, err = meter.Float64Histogram(
		"boxtree_build_duration_seconds",
		metric.WithDescription("Duration of box tree builds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	ins.buildTotal, err = meter.Int64Counter(
		"boxtree_build_total",
		metric.WithDescription("Total number of box tree builds"),
	)
	if err != nil {
		return nil, err
	}
	ins.treeNodes, err = meter.Int64Histogram(
		"boxtree_tree_nodes",
		metric.WithDescription("Number of nodes per built tree"),
	)
	if err != nil {
		return nil, err
	}
	ins.invalidations, err = meter.Int64Counter(
		"boxtree_invalidations_total",
		metric.WithDescription("Trees discarded by insertions after a build"),
	)
	if err != nil {
		return nil, err
	}
	ins.queries, err = meter.Int64Counter(
		"boxtree_query_total",
		metric.WithDescription("Total number of box tree queries"),
	)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

func (ins *instruments) recordBuild(ctx context.Context, st Stats) {
	ins.buildLatency.Record(ctx, st.BuildTime.Seconds())
	ins.buildTotal.Add(ctx, 1)
	ins.treeNodes.Record(ctx, int64(st.Nodes))
}

func (ins *instruments) recordQuery(queryType string) {
	ins.queries.Add(context.Background(), 1, queryAttrs[queryType])
}
