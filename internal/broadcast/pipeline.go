package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsegate/pulsegate/internal/domain"
)

// Pipeline produces the exact payload a specific room receives: sanitize
// per viewer context, then transform into wire shape. Each room's payload
// is computed independently; results are never shared across rooms even
// when two rooms resolve to the same ability, because credentials can
// differ per room.
type Pipeline struct {
	sanitizer   domain.Sanitizer
	transformer domain.Transformer
}

func NewPipeline(sanitizer domain.Sanitizer, transformer domain.Transformer) *Pipeline {
	return &Pipeline{sanitizer: sanitizer, transformer: transformer}
}

func (p *Pipeline) Run(ctx context.Context, payload any, schema domain.SchemaDescriptor, auth domain.AuthContext) (any, error) {
	sanitized, err := p.sanitizer.Sanitize(ctx, payload, schema, auth)
	if err != nil {
		return nil, fmt.Errorf("sanitize payload: %w", err)
	}
	return p.transformer.Transform(sanitized, schema), nil
}

// DefaultSanitizer strips keys beginning with an underscore and any key
// listed in the schema's private fields from map payloads. Non-map
// payloads pass through untouched.
func DefaultSanitizer() domain.Sanitizer {
	return domain.SanitizerFunc(func(_ context.Context, data any, schema domain.SchemaDescriptor, _ domain.AuthContext) (any, error) {
		m, ok := data.(map[string]any)
		if !ok {
			return data, nil
		}

		private := make(map[string]bool, len(schema.PrivateFields))
		for _, field := range schema.PrivateFields {
			private[field] = true
		}

		out := make(map[string]any, len(m))
		for k, v := range m {
			if strings.HasPrefix(k, "_") || private[k] {
				continue
			}
			out[k] = v
		}
		return out, nil
	})
}

// DefaultTransformer passes sanitized data through unchanged.
func DefaultTransformer() domain.Transformer {
	return domain.TransformerFunc(func(data any, _ domain.SchemaDescriptor) any {
		return data
	})
}
