//go:build llama

package manager

// cgo link directives for the in-process llama runtime.
// - An rpath of $ORIGIN lets the loader find libllama.so and libggml*.so next
//   to the built binary (./bin).
// - -L${SRCDIR}/../../bin lets the linker find libllama.so at link time when
//   building the 'llama' variant. No environment variables are required.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
