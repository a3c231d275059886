package cache

import "github.com/coocood/freecache"

const minMemorySizeMB = 1

// NewMemory returns an in-process byte cache bounded to sizeMB megabytes.
func NewMemory(sizeMB int) *freecache.Cache {
	if sizeMB < minMemorySizeMB {
		sizeMB = minMemorySizeMB
	}
	return freecache.NewCache(sizeMB * 1024 * 1024)
}
