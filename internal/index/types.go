package index

import "fmt"

// Field names one of the fixed document fields.
type Field int

const (
	FieldPath Field = iota
	FieldTitle
	FieldBody
	FieldSection
)

// fieldNames is the static field table; the mapping and every document
// conversion resolve field names through it.
var fieldNames = [...]string{
	FieldPath:    "path",
	FieldTitle:   "title",
	FieldBody:    "body",
	FieldSection: "section",
}

// Name returns the stored field name.
func (f Field) Name() string {
	if int(f) < 0 || int(f) >= len(fieldNames) {
		return ""
	}
	return fieldNames[f]
}

func (f Field) String() string {
	return f.Name()
}

// allFields lists every field, in table order.
func allFields() []string {
	names := make([]string, len(fieldNames))
	copy(names, fieldNames[:])
	return names
}

// Fields is the indexable content of one note.
type Fields struct {
	Body     string
	Title    string
	Sections []string
}

// Document is a note as returned by Query.
type Document struct {
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Body       string   `json:"body,omitempty"`
	Sections   []string `json:"sections,omitempty"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// OpKind tags an Operation.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is one index mutation. Fields is only meaningful for OpUpsert.
type Operation struct {
	Kind   OpKind
	Path   string
	Fields Fields
}

// Upsert replaces whatever is indexed under path with fields.
func Upsert(path string, fields Fields) Operation {
	return Operation{Kind: OpUpsert, Path: path, Fields: fields}
}

// Delete removes path from the index. Deleting an absent path is a no-op.
func Delete(path string) Operation {
	return Operation{Kind: OpDelete, Path: path}
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s", o.Kind, o.Path)
}

// StepKind tags a primitive Step.
type StepKind int

const (
	StepDelete StepKind = iota
	StepAdd
)

func (k StepKind) String() string {
	if k == StepAdd {
		return "add"
	}
	return "delete"
}

// Step is a primitive index write. A batch is applied as a sequence of steps.
type Step struct {
	Kind   StepKind
	Path   string
	Fields Fields
}

// Expand lowers operations to primitive steps. An upsert becomes a delete
// of the path followed by an add, so at most one document per path exists
// once the batch is applied.
func Expand(ops []Operation) []Step {
	steps := make([]Step, 0, len(ops)*2)
	for _, op := range ops {
		switch op.Kind {
		case OpUpsert:
			steps = append(steps,
				Step{Kind: StepDelete, Path: op.Path},
				Step{Kind: StepAdd, Path: op.Path, Fields: op.Fields},
			)
		case OpDelete:
			steps = append(steps, Step{Kind: StepDelete, Path: op.Path})
		}
	}
	return steps
}

// validate checks an operation before it is added to a batch.
func (o Operation) validate() error {
	if o.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidOperation)
	}
	if o.Kind != OpUpsert && o.Kind != OpDelete {
		return fmt.Errorf("%w: unknown kind %d for %s", ErrInvalidOperation, o.Kind, o.Path)
	}
	return nil
}
