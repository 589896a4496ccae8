package verifier

import "go.uber.org/fx"

// Module exposes the verification job via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
