// Package bridge serializes access to the venue connection. Any number of
// request-handling goroutines submit operations through the façade; a single
// dedicated worker goroutine owns the connection, executes operations in FIFO
// order, and pumps the connection's event processing while idle so live data
// keeps flowing. All failures inside the worker are captured into result
// cells or lifecycle state; nothing escapes the worker as an unhandled fault.
package bridge
