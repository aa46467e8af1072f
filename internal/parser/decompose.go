package parser

// MaxDepth is how many levels of substitution and unwrapping are followed.
const MaxDepth = 8

// Decomposition is the result of splitting a command string into the
// sub-commands it would run.
type Decomposition struct {
	// Commands are in the order they were found: breadth first, each level
	// left to right.
	Commands []SubCommand
	// Issues describe input that could not be read unambiguously.
	Issues []string
	// TooDeep is set when some part of the input was nested beyond MaxDepth
	// and was not inspected.
	TooDeep bool
}

// Ambiguous reports whether anything in the input could not be read.
func (d Decomposition) Ambiguous() bool {
	return len(d.Issues) > 0
}

func (d *Decomposition) addIssue(issue string) {
	for _, existing := range d.Issues {
		if existing == issue {
			return
		}
	}
	d.Issues = append(d.Issues, issue)
}

type workItem struct {
	text  string
	depth int
}

// Decompose splits command into sub-commands. Control operators separate
// commands; substitutions and wrappers such as eval, bash -c or env are
// followed one level deeper. It never fails: malformed input is read as far
// as possible and the problem is recorded in Issues.
func Decompose(command string) Decomposition {
	var d Decomposition
	queue := []workItem{{text: Normalize(command)}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth > MaxDepth {
			d.TooDeep = true
			continue
		}

		lx := lex(item.text, item.depth)
		for _, issue := range lx.issues {
			d.addIssue(issue)
		}
		if lx.tooDeep {
			d.TooDeep = true
		}
		simples, issues := split(lx.tokens)
		for _, issue := range issues {
			d.addIssue(issue)
		}

		for _, sc := range simples {
			for _, subst := range sc.substs {
				queue = append(queue, workItem{text: subst, depth: item.depth + 1})
			}

			cmd, issue, ok := parse(sc, item.depth)
			if issue != "" {
				d.addIssue(issue)
			}
			if !ok {
				continue
			}

			payloads, emit := unwrap(&cmd)
			for _, payload := range payloads {
				queue = append(queue, workItem{text: payload, depth: item.depth + 1})
			}
			if emit {
				d.Commands = append(d.Commands, cmd)
			}
		}
	}
	return d
}
