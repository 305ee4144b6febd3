package redis

const (
	// KeyPrefixSession is the prefix for session records
	KeyPrefixSession = "smartmarks:session:"
	// KeyPrefixRefresh maps a refresh token hash to its session id
	KeyPrefixRefresh = "smartmarks:refresh:"
	// KeyPrefixRotated remembers a consumed refresh token hash for the reuse window
	KeyPrefixRotated = "smartmarks:rotated:"
	// KeyPrefixState is the prefix for pending OAuth states
	KeyPrefixState = "smartmarks:oauth:state:"
)

// SessionKey returns the Redis key for a session by ID
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// RefreshKey returns the Redis key for a hashed refresh token
func RefreshKey(hash string) string {
	return KeyPrefixRefresh + hash
}

// RotatedKey returns the Redis key remembering a consumed refresh token hash
func RotatedKey(hash string) string {
	return KeyPrefixRotated + hash
}

// StateKey returns the Redis key for an OAuth state value
func StateKey(state string) string {
	return KeyPrefixState + state
}
