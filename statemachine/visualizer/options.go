package visualizer

// Options configures the visualization output.
type Options struct {
	// Direction controls diagram flow: "TB" (top-down) or "LR" (left-right)
	Direction string

	// ShowOutcomes labels transitions with the outcome that triggers them
	ShowOutcomes bool

	// HighlightActive styles the states a running machine is currently in
	HighlightActive bool

	// HighlightPath styles additional states by name
	HighlightPath []string

	// Fenced wraps the diagram in a ```mermaid block for Markdown
	Fenced bool
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		Direction:       "TB",
		ShowOutcomes:    true,
		HighlightActive: true,
	}
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithShowOutcomes enables/disables transition labels.
func (o Options) WithShowOutcomes(show bool) Options {
	o.ShowOutcomes = show

	return o
}

// WithHighlightActive enables/disables active state styling.
func (o Options) WithHighlightActive(highlight bool) Options {
	o.HighlightActive = highlight

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithFenced enables/disables the Markdown code fence.
func (o Options) WithFenced(fenced bool) Options {
	o.Fenced = fenced

	return o
}
