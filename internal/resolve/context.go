package resolve

// Context carries the selection overrides threaded through one resolution.
// It is a value: every override returns a modified copy, so a sibling branch
// never observes another branch's settings.
type Context struct {
	// NodeIdx selects among same-named candidates (0-based). It applies only
	// at the innermost search, where no children are pending.
	NodeIdx int
	// After, when HasAfter is set, restricts a search to candidates starting
	// at or past this offset.
	After    int
	HasAfter bool
}

// WithAfter returns a copy of c restricted to candidates starting at or
// past offset.
func (c Context) WithAfter(offset int) Context {
	c.After = offset
	c.HasAfter = true
	return c
}

// WithNodeIdx returns a copy of c selecting the idx-th candidate.
func (c Context) WithNodeIdx(idx int) Context {
	c.NodeIdx = idx
	return c
}
