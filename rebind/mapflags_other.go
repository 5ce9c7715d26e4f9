//go:build !(linux && amd64)

package rebind

// Only Linux has MAP_32BIT. Elsewhere we have to trust the OS to give
// the arena an address near the request.
const map32Bit = 0
