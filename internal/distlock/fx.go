package distlock

import "go.uber.org/fx"

var Module = fx.Module("distlock",
	fx.Provide(NewClient),
	fx.Provide(provideLocker),
)
