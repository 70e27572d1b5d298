// Package admission bounds concurrent calls per provider.
//
// # Overview
//
// Every backend maps to a provider key (see dispatch.ProviderKey). A Pool
// holds one weighted semaphore per key; the capacity is computed per call
// from Limits, because API providers get a different capacity in each phase:
//
//	limits := admission.DefaultLimits()
//	capacity := limits.Capacity(admission.KindAPI, game.PhaseDayDiscuss) // 2
//	release, err := pool.Acquire(ctx, key, capacity)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// A capacity change swaps in a new semaphore for the key. Callers already
// admitted drain against the old one.
package admission
