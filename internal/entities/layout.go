package entities

// Layout is the read contract for a field layout owned by the host:
// an identifier plus an ordered collection of tabs.
type Layout interface {
	ID() int64
	Tabs() []Tab
}

// Tab is one named tab of a layout with its ordered fields.
type Tab interface {
	Name() string
	Fields() []Field
}

// Field is the capability contract for a layout field. RenderInput
// produces the interactive input for the field; RenderStatic produces
// the read-only presentation of the same value. Decorators wrap this
// interface to downgrade one capability to another without touching
// the rest.
type Field interface {
	ID() int64
	Handle() string
	RenderInput(value string) string
	RenderStatic(value string) string
}

// SimpleLayout is a plain Layout implementation for hosts and tests.
type SimpleLayout struct {
	LayoutID   int64
	LayoutTabs []Tab
}

func (l *SimpleLayout) ID() int64   { return l.LayoutID }
func (l *SimpleLayout) Tabs() []Tab { return l.LayoutTabs }

// SimpleTab is a plain Tab implementation for hosts and tests.
type SimpleTab struct {
	TabName   string
	TabFields []Field
}

func (t *SimpleTab) Name() string    { return t.TabName }
func (t *SimpleTab) Fields() []Field { return t.TabFields }
