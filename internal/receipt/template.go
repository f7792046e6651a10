package receipt

// Template is a merchant-supplied receipt layout: an ordered list of line
// descriptors, each either literal text or a named variable reference.
type Template struct {
	Lines []TemplateLine `json:"lines"`
}

// TemplateLine describes one line of a merchant template. Exactly one of
// Literal or Var should be set; a line with an unknown Var renders empty.
type TemplateLine struct {
	Literal    string `json:"literal,omitempty"`
	Var        string `json:"var,omitempty"`
	Size       Size   `json:"size,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Terminator string `json:"terminator,omitempty"`
}

// layout turns the variable dictionary into rendered lines. Template-present
// and default rendering are two implementations of the same strategy.
type layout interface {
	render(vars map[string]string) []Line
}

type templateLayout struct {
	tpl *Template
}

func (t templateLayout) render(vars map[string]string) []Line {
	lines := make([]Line, 0, len(t.tpl.Lines))
	for _, spec := range t.tpl.Lines {
		text := spec.Literal
		if spec.Var != "" {
			text = vars[spec.Var]
		}
		size := spec.Size
		if size == "" {
			size = SizeNormal
		}
		lines = append(lines, Line{
			Text:       text,
			Size:       size,
			Bold:       spec.Bold,
			Prefix:     spec.Prefix,
			Terminator: spec.Terminator,
		})
	}
	return lines
}

// defaultLayout is the hard-coded fallback used when no merchant template is
// configured. It covers the same fields a template can reference.
type defaultLayout struct{}

func (defaultLayout) render(vars map[string]string) []Line {
	lines := []Line{
		{Text: vars["company"], Size: SizeBig, Bold: true},
		{Text: vars["office"], Size: SizeNormal},
		{Text: vars["date"], Size: SizeSmall, Prefix: "Date: "},
		{Text: vars["receipt_number"], Size: SizeNormal, Bold: true, Prefix: "Receipt No: "},
		{Text: vars["sender_name"], Size: SizeNormal, Prefix: "From: "},
		{Text: vars["sender_phone"], Size: SizeSmall, Prefix: "Phone: "},
		{Text: vars["receiver_name"], Size: SizeNormal, Prefix: "To: "},
		{Text: vars["receiver_phone"], Size: SizeSmall, Prefix: "Phone: "},
		{Text: vars["destination"], Size: SizeNormal, Prefix: "Destination: "},
	}
	if vars["vehicle"] != "" {
		lines = append(lines, Line{Text: vars["vehicle"], Size: SizeSmall, Prefix: "Vehicle: "})
	}
	if vars["payment_method"] != "" {
		lines = append(lines, Line{Text: vars["payment_method"], Size: SizeSmall, Prefix: "Paid via: "})
	}
	lines = append(lines,
		Line{Text: vars["amount"], Size: SizeBig, Bold: true, Prefix: "Amount: "},
		Line{Text: vars["package_token"], Size: SizeNormal, Prefix: "Token: "},
		Line{Text: vars["served_by"], Size: SizeSmall, Prefix: "Served by: ", Terminator: "\n"},
	)
	return lines
}
