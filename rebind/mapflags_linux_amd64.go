package rebind

import "golang.org/x/sys/unix"

// Keep the clone arena in the low 4GiB so relocated CALLs stay within
// rel32 range of the text segment.
const map32Bit = unix.MAP_32BIT
