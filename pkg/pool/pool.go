// Package pool provides object pooling for EmberQL to reduce allocations.
//
// Object pooling reuses allocated objects instead of creating new ones,
// reducing GC pressure and improving throughput for high-frequency operations.
//
// Usage:
//
//	sb := pool.GetStringBuilder()
//	defer pool.PutStringBuilder(sb)
//	sb.WriteString("hello")
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize is stored with the configuration; PutStringBuilder does not
	// read it and drops any builder whose capacity exceeds 64 KiB instead.
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1000,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	globalConfig = config
	initPools()
}

// initPools reinitializes the pool with its New function.
func initPools() {
	stringBuilderPool = sync.Pool{
		New: func() any {
			return &PooledStringBuilder{buf: make([]byte, 0, 256)}
		},
	}
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// String Builder Pool
//
// The lexer's quoted-string scanner (pkg/query/lexer.go) gets a builder,
// writes into it for the duration of one token scan, and returns it before
// the resulting string escapes the loop.
// =============================================================================

var stringBuilderPool = sync.Pool{
	New: func() any {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	},
}

// PooledStringBuilder is a poolable string builder.
type PooledStringBuilder struct {
	buf []byte
}

// WriteString appends a string to the builder.
func (b *PooledStringBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a byte to the builder.
func (b *PooledStringBuilder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// String returns the built string.
func (b *PooledStringBuilder) String() string {
	return string(b.buf)
}

// Len returns current length.
func (b *PooledStringBuilder) Len() int {
	return len(b.buf)
}

// Reset clears the builder for reuse.
func (b *PooledStringBuilder) Reset() {
	b.buf = b.buf[:0]
}

// GetStringBuilder returns a string builder from the pool.
func GetStringBuilder() *PooledStringBuilder {
	if !globalConfig.Enabled {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	}
	b := stringBuilderPool.Get().(*PooledStringBuilder)
	b.Reset()
	return b
}

// PutStringBuilder returns a string builder to the pool.
func PutStringBuilder(b *PooledStringBuilder) {
	if !globalConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > 64*1024 { // Don't pool huge buffers
		return
	}
	b.Reset()
	stringBuilderPool.Put(b)
}
