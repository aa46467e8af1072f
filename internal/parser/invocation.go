package parser

import "strings"

// Shells are the interpreters that take a command string with -c.
var Shells = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true, "fish": true,
}

// shellValueFlags consume the argument that follows them.
var shellValueFlags = map[string]bool{
	"-o": true, "+o": true, "-O": true, "+O": true,
	"--rcfile": true, "--init-file": true,
}

// ShellArgs describes how a shell was asked to run.
type ShellArgs struct {
	// Inline is set when the command text comes from the arguments (-c).
	Inline bool
	// Command is the inline command text, if one was given.
	Command string
	// HasCommand distinguishes "-c ''" from a -c with nothing after it.
	HasCommand  bool
	Interactive bool
	// Script is the first operand when the shell runs a file.
	Script string
}

// ShellInvocation reads the options of a shell invocation.
func ShellInvocation(args []string) ShellArgs {
	var s ShellArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			if i+1 < len(args) {
				s.setOperand(args[i+1])
			}
			return s
		case arg == "-":
			s.Script = arg
			return s
		case arg == "--command", arg == "--init-command":
			s.Inline = true
		case strings.HasPrefix(arg, "--command="), strings.HasPrefix(arg, "--init-command="):
			s.Inline = true
			s.Command, s.HasCommand = arg[strings.IndexByte(arg, '=')+1:], true
			return s
		case arg == "--interactive":
			s.Interactive = true
		case shellValueFlags[arg]:
			i++
		case strings.HasPrefix(arg, "--"):
		case len(arg) > 1 && (arg[0] == '-' || arg[0] == '+'):
			flags := arg[1:]
			if strings.ContainsRune(flags, 'c') {
				s.Inline = true
			}
			if strings.ContainsRune(flags, 'i') {
				s.Interactive = true
			}
		default:
			s.setOperand(arg)
			return s
		}
	}
	return s
}

func (s *ShellArgs) setOperand(arg string) {
	if s.Inline {
		s.Command, s.HasCommand = arg, true
		return
	}
	s.Script = arg
}

// nixValueFlags maps nix options to the number of arguments they consume.
var nixValueFlags = map[string]int{
	"--option": 2, "--arg": 2, "--argstr": 2, "--override-input": 2,
	"--override-flake": 2, "--arg-from-file": 2, "--arg-from-stdin": 1,
	"-I": 1, "--include": 1, "-f": 1, "--file": 1, "--expr": 1,
	"-o": 1, "--out-link": 1, "--profile": 1, "--inputs-from": 1,
	"--extra-experimental-features": 1, "--experimental-features": 1,
	"--store": 1, "--eval-store": 1, "--system": 1, "--builders": 1,
	"-j": 1, "--max-jobs": 1, "--cores": 1, "--reference-lock-file": 1,
	"--output-lock-file": 1, "--update-input": 1, "--log-format": 1,
	"--keep": 1, "-k": 1, "--unset": 1, "-u": 1, "--phase": 1,
	"--redirect": 2, "--set-env-var": 2, "-s": 2, "--chdir": 1,
}

// NixArgs describes a nix invocation.
type NixArgs struct {
	Subcommand string
	// Operands are the positional arguments after the subcommand.
	Operands []string
	// Command is the program given to --command or -c.
	Command []string
	// ProgramArgs are the arguments after "--".
	ProgramArgs []string
}

// NixInvocation reads the options of a nix invocation, skipping option
// values so they are never taken for installables.
func NixInvocation(args []string) NixArgs {
	var n NixArgs
	for i := 0; i < len(args); {
		arg := args[i]
		switch {
		case arg == "--":
			n.ProgramArgs = args[i+1:]
			return n
		case n.Subcommand != "" && (arg == "--command" || arg == "-c"):
			n.Command = args[i+1:]
			return n
		case strings.HasPrefix(arg, "-") && arg != "-":
			if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
				i++
				continue
			}
			i += 1 + nixValueFlags[arg]
			continue
		case n.Subcommand == "":
			n.Subcommand = arg
		default:
			n.Operands = append(n.Operands, arg)
		}
		i++
	}
	return n
}
