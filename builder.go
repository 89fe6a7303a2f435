package courier

import (
	"context"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/config"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/reporter"
	"github.com/courier-mail/courier/store"
	"github.com/courier-mail/courier/version"
	"github.com/courier-mail/courier/wait"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type engineBuilder struct {
	cfg          *config.Config
	dataDir      string
	storeBuilder store.Builder
	reporter     reporter.Reporter
	registerer   prometheus.Registerer
	panicHandler async.PanicHandler
	versionInfo  version.Info
	log          *logrus.Entry
}

func newBuilder() (*engineBuilder, error) {
	return &engineBuilder{
		cfg:          config.Default(),
		reporter:     reporter.NullReporter{},
		panicHandler: async.NoopPanicHandler{},
		versionInfo:  version.Default,
		log:          logrus.WithField("pkg", "courier"),
	}, nil
}

func (builder *engineBuilder) build() (*Engine, error) {
	if err := builder.cfg.Validate(); err != nil {
		return nil, err
	}

	if builder.dataDir == "" {
		builder.dataDir = builder.cfg.DataDir
	}

	if builder.storeBuilder == nil {
		if builder.dataDir != "" {
			builder.storeBuilder = &store.BadgerStoreBuilder{
				Options: []store.Option{store.WithCompressor(store.ZLibCompressor{})},
			}
		} else {
			builder.storeBuilder = &store.InMemoryStoreBuilder{}
		}
	}

	var metrics *observability.Metrics

	if builder.registerer != nil {
		metrics = observability.NewMetrics(builder.registerer)
	}

	ctx, cancel := context.WithCancel(contextWith(context.Background(), builder.reporter, metrics))

	builder.log.WithField("version", builder.versionInfo.UserAgent()).Debug("Engine created")

	return &Engine{
		ctx:          ctx,
		cancel:       cancel,
		cfg:          builder.cfg,
		dataDir:      builder.dataDir,
		storeBuilder: builder.storeBuilder,
		panicHandler: builder.panicHandler,
		versionInfo:  builder.versionInfo,
		log:          builder.log,
		accounts:     make(map[string]*account),
		forwarders:   wait.Group{PanicHandler: builder.panicHandler},
	}, nil
}
