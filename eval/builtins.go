package eval

// builtinParam is one declared parameter of a builtin macro.
type builtinParam struct {
	name     string
	required bool
}

// builtin describes a privileged macro's signature. Expansion-time builtins
// are dispatched by the engine during the pass loop; render-time builtins
// have their arguments bound and survive into the expanded tree for the
// renderer.
type builtin struct {
	params        []builtinParam
	hasBody       bool
	expansionTime bool
}

func (b *builtin) param(name string) (builtinParam, bool) {
	for _, p := range b.params {
		if p.name == name {
			return p, true
		}
	}
	return builtinParam{}, false
}

// aliases maps shorthand names to canonical builtin names. Nodes keep the
// name as written; aliases resolve at dispatch and in the renderer.
var aliases = map[string]string{
	"-":   "title",
	"h1":  "title",
	"--":  "h2",
	"---": "h3",
	"**":  "b",
	"__":  "i",
	"li":  "*",
}

// CanonicalName resolves an alias to its builtin name, or returns the name
// unchanged.
func CanonicalName(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

var builtins = map[string]*builtin{
	// Structure
	"title":   {hasBody: true},
	"h2":      {hasBody: true},
	"h3":      {hasBody: true},
	"h4":      {hasBody: true},
	"h5":      {hasBody: true},
	"h6":      {hasBody: true},
	"p":       {hasBody: true},
	"hr":      {},
	"literal": {hasBody: true},

	// Inline
	"b": {hasBody: true},
	"i": {hasBody: true},
	"url": {
		params:  []builtinParam{{"link", true}, {"text", false}},
		hasBody: true,
	},
	"code": {
		params:  []builtinParam{{"language", false}},
		hasBody: true,
	},

	// Lists and tables
	"ul":    {hasBody: true},
	"ol":    {hasBody: true},
	"*":     {hasBody: true},
	"table": {hasBody: true},
	"tr":    {hasBody: true},
	"td": {
		params:  []builtinParam{{"span", false}},
		hasBody: true,
	},
	"th": {
		params:  []builtinParam{{"span", false}},
		hasBody: true,
	},

	// Head and metadata
	"meta": {
		params: []builtinParam{{"name", false}, {"property", false}, {"content", true}},
	},
	"link": {
		params: []builtinParam{{"rel", true}, {"href", true}},
	},
	"script": {
		params:  []builtinParam{{"src", false}},
		hasBody: true,
	},
	"lang": {hasBody: true},

	// Expansion-time
	"set": {
		params:        []builtinParam{{"name", true}},
		hasBody:       true,
		expansionTime: true,
	},
	"comment": {hasBody: true, expansionTime: true},
	"ifeq": {
		params:        []builtinParam{{"lhs", true}, {"rhs", true}},
		hasBody:       true,
		expansionTime: true,
	},
	"ifne": {
		params:        []builtinParam{{"lhs", true}, {"rhs", true}},
		hasBody:       true,
		expansionTime: true,
	},
	"ifset": {
		params:        []builtinParam{{"name", true}},
		hasBody:       true,
		expansionTime: true,
	},
	"include": {
		params:        []builtinParam{{"file", true}},
		expansionTime: true,
	},
}

// lookupBuiltin returns the builtin for a canonical name.
func lookupBuiltin(canonical string) (*builtin, bool) {
	b, ok := builtins[canonical]
	return b, ok
}

// builtinNames returns every builtin name and alias, for suggestions.
func builtinNames() []string {
	names := make([]string, 0, len(builtins)+len(aliases))
	for name := range builtins {
		names = append(names, name)
	}
	for alias := range aliases {
		names = append(names, alias)
	}
	return names
}
