package builtins

import "stratopt/internal/strategy"

// Register adds every built-in factory to r.
func Register(r *strategy.Registry) {
	r.Register(BuyAndHoldFactory{})
	r.Register(MeanReversionFactory{})
	r.Register(SMACrossFactory{})
	r.Register(PairsFactory{})
}

// NewRegistry returns a registry preloaded with the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
