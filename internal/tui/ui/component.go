package ui

// MenuHint describes a keyboard shortcut shown in the header.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 1-9 jumps, drawn in their own color
}

// Component is a page of the conversation screens. Name labels the page in
// the breadcrumbs; Hints lists the keys the page understands.
type Component interface {
	Name() string
	Hints() []MenuHint
}
