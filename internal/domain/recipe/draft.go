package recipe

// DraftCommentField is the only draft field the comment composer uses
const DraftCommentField = "comment"

// Draft accumulates unsaved user input keyed by field name
type Draft map[string]string

// Set returns a copy of the draft with name set to value
func (d Draft) Set(name, value string) Draft {
	out := make(Draft, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out[name] = value
	return out
}

// Body returns the comment text held by the draft
func (d Draft) Body() string {
	return d[DraftCommentField]
}

// Clone returns a copy of the draft
func (d Draft) Clone() Draft {
	if d == nil {
		return nil
	}
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
