// Package querycache is a read-through cache in front of a persistent store.
// It caches point lookups, batched lookups, filter-first and filter-count
// queries for one table, and keeps entity and count entries in step with
// committed writes through an Invalidator.
//
// Components:
//   - provider.Provider: byte store with TTL (nop, ristretto, bigcache, sqlite,
//     memcached, redis). backend.Configure picks one from settings.
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - genstore.GenStore: generation counter per entity key. Local by default,
//     Redis when several replicas share one cache.
//   - Source[V, K]: the persistent store behind the cache.
//
// Keys:
//
//	{ns}:get:{table}[|{version}]:{id}     entities
//	{ns}:count:{table}[|{version}]:       unfiltered row count
//	{ns}:ff:{table}[|{version}]:{pred}    filter-first (TTL only)
//	{ns}:fc:{table}[|{version}]:{pred}    filter-count (TTL only)
//
// CAS pattern on a miss:
//
//	obs := gen.Snapshot(k)  // before the source read
//	v   := source.Lookup(id)
//	if gen.Snapshot(k) == obs { provider.Set(k, frame(obs, v)) }
//
// Writes bump the generation first, so a read that raced an update never
// stores the value it read before the update.
package querycache
