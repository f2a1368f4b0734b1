package password

import (
	"os"
	"strconv"
)

// Params are the argon2id cost settings. Memory is in KiB.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is roughly 64 MiB and three passes.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// LoadParamsFromEnv overlays ARGON2_MEMORY, ARGON2_ITER and ARGON2_PAR on
// DefaultParams. Unparseable values are ignored.
func LoadParamsFromEnv() Params {
	p := DefaultParams
	if n, ok := envUint("ARGON2_MEMORY", 32); ok {
		p.Memory = uint32(n)
	}
	if n, ok := envUint("ARGON2_ITER", 32); ok {
		p.Iterations = uint32(n)
	}
	if n, ok := envUint("ARGON2_PAR", 8); ok {
		p.Parallelism = uint8(n)
	}
	return p
}

func envUint(key string, bits int) (uint64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, bits)
	return n, err == nil && n > 0
}
