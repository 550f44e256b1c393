// Package dcache models a per-CPU L1 data cache using Akita cache
// components.
//
// The model tracks tags only. Memory stays the source of truth for data;
// the cache decides hit or miss and keeps statistics.
package dcache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes.
	Size int `json:"size"`
	// Associativity is the number of ways.
	Associativity int `json:"associativity"`
	// BlockSize is the cache line size in bytes.
	BlockSize int `json:"block_size"`
}

// DefaultConfig returns the L1 data cache of an Apple M2 performance core:
// 128KB, 8-way, 64B lines.
func DefaultConfig() Config {
	return Config{
		Size:          128 * 1024,
		Associativity: 8,
		BlockSize:     64,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a power of two, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	setBytes := c.Associativity * c.BlockSize
	if c.Size < setBytes || c.Size%setBytes != 0 {
		return fmt.Errorf("size %d is not a multiple of associativity*block_size (%d)",
			c.Size, setBytes)
	}
	return nil
}

// Statistics holds cache access statistics.
type Statistics struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a write-allocate, LRU, set-associative tag store.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a cache. The configuration must be valid.
func New(config Config) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Access looks up addr, allocating its line on a miss. It reports whether
// the access hit.
func (c *Cache) Access(addr uint64, write bool) bool {
	if write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := addr / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		if write {
			block.IsDirty = true
		}
		c.directory.Visit(block)
		return true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return false
	}

	if victim.IsValid {
		c.stats.Evictions++
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	c.directory.Visit(victim)

	return false
}

// Reset invalidates every line and clears the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
