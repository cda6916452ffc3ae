package querycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Lookup reports one cache probe. op ∈ {"get", "count", "ff", "fc"}.
	Lookup(table, op string, hit bool)

	// SourceQuery reports one round trip to the source of truth.
	// n is the number of identifiers asked for (1 for point and predicate ops).
	SourceQuery(table, op string, n int)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode", "not_integer"}
	SelfHeal(storageKey, reason string)

	// A read-through write-back was dropped because the key's generation
	// moved while the source was queried.
	WriteBackSkipped(storageKey string)

	// Provider I/O failed. op ∈ {"get", "get_many", "set", "set_many", "del", "incr"}.
	BackendError(op, storageKey string, err error)

	// GenStore errors (snapshot or bump).
	// count is number of keys involved (1 for Snapshot/Bump, N for SnapshotMany).
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)

	// Both gen bump and delete failed on the write path (likely backend outage).
	InvalidateOutage(key string, bumpErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) Lookup(string, string, bool)           {}
func (NopHooks) SourceQuery(string, string, int)       {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) WriteBackSkipped(string)               {}
func (NopHooks) BackendError(string, string, error)    {}
func (NopHooks) GenSnapshotError(int, error)           {}
func (NopHooks) GenBumpError(string, error)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}
