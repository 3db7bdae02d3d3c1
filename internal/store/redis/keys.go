package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark record keys
	KeyPrefixBookmark = "linkstash:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner keys
	KeyPrefixOwner = "linkstash:owner:"
	// KeyPrefixChanges is the prefix for per-owner change feed channels
	KeyPrefixChanges = "linkstash:changes:"
)

// BookmarkKey returns the Redis key holding a bookmark record
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerIndexKey returns the sorted set of an owner's bookmark IDs,
// scored by creation time.
func OwnerIndexKey(owner string) string {
	return KeyPrefixOwner + owner + ":bookmarks"
}

// ChangesChannel returns the Pub/Sub channel carrying an owner's change feed
func ChangesChannel(owner string) string {
	return KeyPrefixChanges + owner
}
