package reporter

import "go.uber.org/fx"

// Module exposes the reporting job via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
