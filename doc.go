// Mask the platform identity of the running process.
//
// idmask intercepts registry.CopyProperty, the in-process
// platform-identity lookup, by patching the function at load time. A call
// asking for the platform UUID gets a fixed spoofed value; every other
// call is forwarded, arguments untouched, to the captured original. The
// spoofed value is built once and shared: each matching caller receives
// its own reference-counted claim on the same canonical instance, so
// callers that release what they were given can never free it out from
// under each other.
//
// Installation is fail-open. If the target symbol cannot be found or
// patched, the process keeps its original behavior and the only trace is
// a diagnostic log line.
//
// Import the autoload subpackage for its side effect to arm the hook from
// a loader-run constructor, or call Enable directly.
package idmask
