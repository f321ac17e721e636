package domain

import "context"

// Sanitizer removes data a viewer must not see. Sanitization may itself
// consult the ability in the auth context and is assumed I/O-capable.
type Sanitizer interface {
	Sanitize(ctx context.Context, data any, schema SchemaDescriptor, auth AuthContext) (any, error)
}

// Transformer shapes sanitized data into its wire form.
type Transformer interface {
	Transform(data any, schema SchemaDescriptor) any
}

// SanitizerFunc adapts a function to the Sanitizer interface.
type SanitizerFunc func(ctx context.Context, data any, schema SchemaDescriptor, auth AuthContext) (any, error)

func (f SanitizerFunc) Sanitize(ctx context.Context, data any, schema SchemaDescriptor, auth AuthContext) (any, error) {
	return f(ctx, data, schema, auth)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(data any, schema SchemaDescriptor) any

func (f TransformerFunc) Transform(data any, schema SchemaDescriptor) any {
	return f(data, schema)
}
