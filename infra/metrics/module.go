package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/sonet/feed-realtime-service/internal/ranking"
	"github.com/sonet/feed-realtime-service/internal/service"
)

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return reg
		},
		fx.Annotate(
			NewExporter,
			fx.As(new(service.StatsSink)),
			fx.As(new(service.DeliveryObserver)),
			fx.As(new(ranking.Observer)),
		),
	),
)
