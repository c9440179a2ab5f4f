package market

import (
	"go.uber.org/zap"

	"github.com/rsercano/market-go/params"
	"github.com/rsercano/market-go/pkg/contracts"
	"github.com/rsercano/market-go/pkg/ledger"
)

// NewFromBackend creates a Market wired to a live node. All contract clients
// are built from the backend and the configured protocol addresses; the
// signer stays injectable because the backend itself holds no keys. Pass an
// order.KeySigner for local keys.
func NewFromBackend(backend contracts.Backend, signer ledger.Signer, cfg params.Config, log *zap.Logger) *Market {
	deps := Deps{
		Contracts:       contracts.NewMarketContractClient(backend),
		Pool:            contracts.NewCollateralPoolClient(backend),
		Token:           contracts.NewERC20Client(backend),
		Membership:      contracts.NewMarketTokenClient(backend, cfg.Addresses.MarketToken),
		Oracle:          contracts.NewOrderLibOracle(backend, cfg.Addresses.OrderLib),
		Signer:          signer,
		Registry:        contracts.NewRegistryClient(backend, cfg.Addresses.MarketContractRegistry),
		ContractFactory: contracts.NewContractFactoryClient(backend, cfg.Addresses.MarketContractFactory),
		PoolFactory:     contracts.NewPoolFactoryClient(backend, cfg.Addresses.MarketCollateralPoolFactory),
	}
	return New(deps, cfg, log)
}
