package donation

import "go.uber.org/fx"

// Module exposes the donation store via Fx, both concretely and as Repository.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Repository { return s }),
)
