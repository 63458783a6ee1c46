package vu

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/data"
	"github.com/loadvane/corrida/internal/protocol"
	"github.com/loadvane/corrida/internal/protocol/rest"
	"github.com/loadvane/corrida/internal/protocol/script"
	"github.com/loadvane/corrida/internal/protocol/soap"
	"github.com/loadvane/corrida/internal/protocol/wait"
	"github.com/loadvane/corrida/internal/protocol/web"
)

// Assemble builds the protocol-adapter set and supporting registries a run
// needs from a parsed test config: one adapter instance per StepKind,
// shared across every VU. hooks may be nil, in which case an empty
// registry is used and every Custom step fails with a clear hook_error,
// since the embedding application is expected to register its own
// functions.
func Assemble(test *config.Test, fs afero.Fs, hooks *script.Registry, collector Collector, log logrus.FieldLogger) *Config {
	if hooks == nil {
		hooks = script.NewRegistry()
	}

	adapters := map[config.StepKind]protocol.Adapter{
		config.StepREST:   rest.New(),
		config.StepSOAP:   soap.New(),
		config.StepWait:   wait.New(),
		config.StepWeb:    web.New(nil),
		config.StepScript: script.NewExpressionAdapter(),
		config.StepCustom: script.NewCustomAdapter(hooks),
	}

	seed, hasSeed := test.Global.Faker.Seed.Int64, test.Global.Faker.Seed.Valid
	return &Config{
		Test:      test,
		Adapters:  adapters,
		CSV:       data.NewRegistry(),
		Faker:     data.NewFaker(test.Global.Faker.Locale, seed, hasSeed),
		Hooks:     hooks,
		Collector: collector,
		Logger:    log,
		FS:        fs,
	}
}
