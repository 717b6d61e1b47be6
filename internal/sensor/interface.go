package sensor

// Source is a single analog channel sampled on demand. Read returns the raw
// value in the converter's native integer scale and is expected to be fast.
type Source interface {
	Read() (int, error)
	Name() string
	Close() error
}
