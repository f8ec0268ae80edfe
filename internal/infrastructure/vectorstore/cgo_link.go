package vectorstore

// CGO linker directives for the LanceDB native library.
// The pre-built shared library lives at lib/<platform>/liblancedb_go.so at
// the repository root, with the C headers under include/.
//
// These flags tell the Go linker where to find the native symbols at build
// time; at runtime, LD_LIBRARY_PATH or the embedded rpath must include the
// lib directory.

// #cgo linux,amd64 LDFLAGS: -L${SRCDIR}/../../../lib/linux_amd64 -llancedb_go -Wl,-rpath,${SRCDIR}/../../../lib/linux_amd64
// #cgo linux,amd64 CFLAGS: -I${SRCDIR}/../../../include
// #cgo darwin,amd64 LDFLAGS: -L${SRCDIR}/../../../lib/darwin_amd64 -llancedb_go -Wl,-rpath,${SRCDIR}/../../../lib/darwin_amd64
// #cgo darwin,arm64 LDFLAGS: -L${SRCDIR}/../../../lib/darwin_arm64 -llancedb_go -Wl,-rpath,${SRCDIR}/../../../lib/darwin_arm64
import "C"
