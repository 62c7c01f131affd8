package gateway

import (
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.client",
	fx.Provide(
		fx.Annotate(NewClient, fx.As(new(paymentdomain.Gateway))),
	),
)
