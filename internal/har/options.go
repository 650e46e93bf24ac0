package har

// ConvertOptions control which recorded entries become cases.
type ConvertOptions struct {
	// BaseURL keeps only entries under it and makes their paths relative to
	// it. Empty keeps every entry and uses the URL path as is.
	BaseURL string
	// IncludeHosts limits entries to these hosts (empty = all hosts).
	IncludeHosts []string
	ExcludeHosts []string
	// IncludeMethods limits entries to these methods (empty = all methods).
	IncludeMethods []string
	// ExcludeStatic drops scripts, stylesheets, images and fonts.
	ExcludeStatic bool
	// IncludeHeaders copies request headers the harness does not manage.
	IncludeHeaders bool
	// StructureAssertions adds a has_key assertion per top-level key of a
	// recorded JSON object body.
	StructureAssertions bool
}

// DefaultOptions returns ConvertOptions with sensible defaults.
func DefaultOptions() ConvertOptions {
	return ConvertOptions{
		ExcludeStatic:       true,
		IncludeHeaders:      true,
		StructureAssertions: true,
	}
}
