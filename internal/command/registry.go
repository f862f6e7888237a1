package command

// Shadow records an alias that was claimed by a higher-priority command and is
// therefore unreachable from the command that also listed it.
type Shadow struct {
	Alias   string
	Winner  Kind
	Shadows Kind
}

// Registry maps normalized aliases to command kinds.
type Registry struct {
	commands []Command
	aliases  map[string]Kind
	shadowed []Shadow
}

// NewRegistry creates a Registry from cmds, which must be in priority order.
// When two commands list the same alias, the earlier command keeps it and the
// collision is reported by Shadowed.
//
// Postcondition: every non-empty alias resolves to exactly one Kind.
func NewRegistry(cmds []Command) *Registry {
	r := &Registry{
		commands: make([]Command, 0, len(cmds)),
		aliases:  make(map[string]Kind),
	}
	for _, cmd := range cmds {
		kept := Command{Kind: cmd.Kind, Help: cmd.Help}
		for _, alias := range cmd.Aliases {
			norm := Normalize(alias)
			if norm == "" {
				continue
			}
			if existing, exists := r.aliases[norm]; exists {
				if existing != cmd.Kind {
					r.shadowed = append(r.shadowed, Shadow{Alias: norm, Winner: existing, Shadows: cmd.Kind})
				}
				continue
			}
			r.aliases[norm] = cmd.Kind
			kept.Aliases = append(kept.Aliases, alias)
		}
		r.commands = append(r.commands, kept)
	}
	return r
}

// Resolve returns the Kind for token, or KindUnknown. The token is normalized first.
func (r *Registry) Resolve(token string) Kind {
	if k, ok := r.aliases[Normalize(token)]; ok {
		return k
	}
	return KindUnknown
}

// Lookup returns the command for kind with its reachable aliases.
func (r *Registry) Lookup(kind Kind) (Command, bool) {
	for _, c := range r.commands {
		if c.Kind == kind {
			return c, true
		}
	}
	return Command{}, false
}

// Commands returns all commands in priority order.
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Shadowed returns every alias collision found while building the registry.
func (r *Registry) Shadowed() []Shadow {
	out := make([]Shadow, len(r.shadowed))
	copy(out, r.shadowed)
	return out
}
