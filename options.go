package dynaval

// SetMode selects how the three wire set types decode.
type SetMode int

const (
	// SetsAsSlices decodes SS to []string, NS to []any and BS to [][]byte,
	// keeping wire order. This is the default.
	SetsAsSlices SetMode = iota
	// SetsAsSets decodes SS to Set[string], NS to Set[any] and BS to
	// Set[string] whose keys hold the raw bytes.
	SetsAsSets
)

// EncodeOptions configures an encode call.
type EncodeOptions struct {
	// StripEmptyStrings drops map entries whose value is the empty string
	// instead of encoding them as {"S": ""}. Older service versions rejected
	// empty string attributes.
	StripEmptyStrings bool

	// Registry resolves capabilities for record types. Nil means
	// DefaultRegistry.
	Registry *Registry
}

// DecodeOptions configures a decode call.
type DecodeOptions struct {
	// Sets selects the Go container for SS, NS and BS values.
	Sets SetMode

	// Registry resolves capabilities for record types. Nil means
	// DefaultRegistry.
	Registry *Registry
}

// WithSetMode returns a decode option selecting the set mode.
func WithSetMode(mode SetMode) func(*DecodeOptions) {
	return func(o *DecodeOptions) { o.Sets = mode }
}

// WithDecodeRegistry returns a decode option selecting the registry.
func WithDecodeRegistry(r *Registry) func(*DecodeOptions) {
	return func(o *DecodeOptions) { o.Registry = r }
}

// WithEncodeRegistry returns an encode option selecting the registry.
func WithEncodeRegistry(r *Registry) func(*EncodeOptions) {
	return func(o *EncodeOptions) { o.Registry = r }
}

// WithStripEmptyStrings returns an encode option enabling legacy stripping of
// empty string attributes.
func WithStripEmptyStrings() func(*EncodeOptions) {
	return func(o *EncodeOptions) { o.StripEmptyStrings = true }
}

func newEncodeOptions(base EncodeOptions, opts ...func(*EncodeOptions)) EncodeOptions {
	options := base
	for _, opt := range opts {
		opt(&options)
	}
	if options.Registry == nil {
		options.Registry = DefaultRegistry
	}
	return options
}

func newDecodeOptions(base DecodeOptions, opts ...func(*DecodeOptions)) DecodeOptions {
	options := base
	for _, opt := range opts {
		opt(&options)
	}
	if options.Registry == nil {
		options.Registry = DefaultRegistry
	}
	return options
}
