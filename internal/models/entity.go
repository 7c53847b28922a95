package models

// Entity types known to the business application. Each one gets its own
// table in the local store; deployments may configure additional ones.
const (
	EntityUsers         = "users"
	EntityOrders        = "orders"
	EntityProducts      = "products"
	EntityClients       = "clients"
	EntityProviders     = "providers"
	EntityStores        = "stores"
	EntityAccounts      = "accounts"
	EntityExchangeRates = "exchangeRates"
)

// DefaultEntityTypes returns the built-in entity types in a stable order.
func DefaultEntityTypes() []string {
	return []string{
		EntityUsers,
		EntityOrders,
		EntityProducts,
		EntityClients,
		EntityProviders,
		EntityStores,
		EntityAccounts,
		EntityExchangeRates,
	}
}
