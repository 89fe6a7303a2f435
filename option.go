package courier

import (
	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/config"
	"github.com/courier-mail/courier/reporter"
	"github.com/courier-mail/courier/store"
	"github.com/courier-mail/courier/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Option represents a type that can be used to configure the engine.
type Option interface {
	config(*engineBuilder)
}

// WithConfig instructs the engine to use the given settings instead of config.Default().
func WithConfig(cfg *config.Config) Option {
	return &withConfig{
		cfg: cfg,
	}
}

type withConfig struct {
	cfg *config.Config
}

func (opt withConfig) config(builder *engineBuilder) {
	builder.cfg = opt.cfg
}

// WithDataDir instructs the engine to keep account content caches under the given directory.
func WithDataDir(dir string) Option {
	return &withDataDir{
		dir: dir,
	}
}

type withDataDir struct {
	dir string
}

func (opt withDataDir) config(builder *engineBuilder) {
	builder.dataDir = opt.dir
}

// WithStore instructs the engine to create account content caches with the given builder.
func WithStore(storeBuilder store.Builder) Option {
	return &withStore{
		storeBuilder: storeBuilder,
	}
}

type withStore struct {
	storeBuilder store.Builder
}

func (opt withStore) config(builder *engineBuilder) {
	builder.storeBuilder = opt.storeBuilder
}

// WithReporter instructs the engine to report unexpected request failures to the given reporter.
func WithReporter(reporter reporter.Reporter) Option {
	return &withReporter{
		reporter: reporter,
	}
}

type withReporter struct {
	reporter reporter.Reporter
}

func (opt withReporter) config(builder *engineBuilder) {
	builder.reporter = opt.reporter
}

// WithMetrics instructs the engine to register its metrics with the given registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return &withMetrics{
		registerer: registerer,
	}
}

type withMetrics struct {
	registerer prometheus.Registerer
}

func (opt withMetrics) config(builder *engineBuilder) {
	builder.registerer = opt.registerer
}

// WithPanicHandler instructs the engine to recover panics of its goroutines with the given handler.
func WithPanicHandler(panicHandler async.PanicHandler) Option {
	return &withPanicHandler{
		panicHandler: panicHandler,
	}
}

type withPanicHandler struct {
	panicHandler async.PanicHandler
}

func (opt withPanicHandler) config(builder *engineBuilder) {
	builder.panicHandler = opt.panicHandler
}

// WithLogger instructs the engine to log through the given entry.
func WithLogger(log *logrus.Entry) Option {
	return &withLogger{
		log: log,
	}
}

type withLogger struct {
	log *logrus.Entry
}

func (opt withLogger) config(builder *engineBuilder) {
	builder.log = opt.log
}

type withVersionInfo struct {
	versionInfo version.Info
}

func (vi *withVersionInfo) config(builder *engineBuilder) {
	builder.versionInfo = vi.versionInfo
}

func WithVersionInfo(vmajor, vminor, vpatch int, name, vendor, supportURL string) Option {
	return &withVersionInfo{
		versionInfo: version.Info{
			Name: name,
			Version: version.Version{
				Major: vmajor,
				Minor: vminor,
				Patch: vpatch,
			},
			Vendor:     vendor,
			SupportURL: supportURL,
		},
	}
}
