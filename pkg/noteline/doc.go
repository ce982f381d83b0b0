// Package noteline is the application layer: configuration parsing,
// store selection, the REST and websocket boundary, and the archive
// export/import commands. The collaborative semantics live in
// [github.com/noteline/noteline/pkg/outline]; this package only wires
// them to HTTP and the command line.
package noteline
