package directive

// Names of the built-in kinds.
const (
	KindConditional = "if"
	KindVariable    = "var"
)

// Builtins returns the built-in kinds in registration order.
func Builtins() []Kind {
	return []Kind{
		{
			Name:     KindConditional,
			Open:     IfOpen,
			Close:    EndifTag,
			Nestable: true,
			New:      NewConditional,
		},
		{
			Name:  KindVariable,
			Open:  "{{",
			Close: "}}",
			New:   NewVariable,
		},
	}
}

// RegisterBuiltins adds the built-in kinds to r.
func RegisterBuiltins(r *Registry) error {
	for _, k := range Builtins() {
		if _, err := r.Register(k); err != nil {
			return err
		}
	}
	return nil
}
