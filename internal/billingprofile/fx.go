package billingprofile

import (
	"github.com/smallbiznis/storefront/internal/billingprofile/repository"
	"github.com/smallbiznis/storefront/internal/billingprofile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingprofile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
