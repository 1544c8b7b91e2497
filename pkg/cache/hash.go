package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// hashKey builds an artifact key of the form "<class>:<digest>", where
// digest is the SHA-256 of the JSON-encoded parts. The class names the
// artifact kind (snapshot, scene, constellation) and doubles as the
// shard directory in FileCache.
func hashKey(class string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return class + ":" + hex.EncodeToString(sum[:])
}

// keyClass reports the artifact class of a key. ScopedKeyer prefixes
// sit in front of the class, so the class is the colon segment right
// before the digest. Keys without a class land in "misc".
func keyClass(key string) string {
	i := strings.LastIndexByte(key, ':')
	if i <= 0 {
		return "misc"
	}
	head := key[:i]
	if j := strings.LastIndexByte(head, ':'); j >= 0 {
		head = head[j+1:]
	}
	if head == "" {
		return "misc"
	}
	return head
}

// Hash is the content digest used throughout the pipeline, for snapshot
// input hashing and for cache file names: full SHA-256, 64 hex chars.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
