package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pthm/cmpkit"
)

var (
	colorCyan    = lipgloss.Color("14")
	colorDimGray = lipgloss.Color("240")

	styleName    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSection = lipgloss.NewStyle().Bold(true)
	styleKey     = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDimGray)
)

// keyColumnWidth aligns the details of a section.
const keyColumnWidth = 16

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <component>",
		Short: "Print the compiled metadata of a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.setup()
			if err != nil {
				return err
			}
			cl, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", cmpkit.ErrNotFound, args[0])
			}
			base, err := cmpkit.BuildBase(cl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), formatMeta(base.Meta))
			return err
		},
	}
}

// formatMeta renders the sections of a metadata record. Empty sections are
// omitted.
func formatMeta(m *cmpkit.Meta) string {
	var sb strings.Builder

	sb.WriteString(styleName.Render(m.Name))
	if m.Parent != nil {
		sb.WriteString(styleDim.Render(" extends " + m.Parent.Name))
	}
	if m.Params.Functional {
		sb.WriteString(styleDim.Render(" functional"))
	}
	sb.WriteByte('\n')

	section(&sb, "props", fieldLines(m.Props, true))
	section(&sb, "fields", fieldLines(m.Fields, false))
	section(&sb, "system", fieldLines(m.SystemFields, false))
	section(&sb, "computed", accessorLines(m.Computed))
	section(&sb, "accessors", accessorLines(m.Accessors))
	section(&sb, "methods", methodLines(m.Methods))
	section(&sb, "watchers", watcherLines(m.Watchers))
	section(&sb, "hooks", hookLines(m.Hooks))
	section(&sb, "mods", modLines(m.Mods))
	return sb.String()
}

type line struct {
	key    string
	detail string
}

func section(sb *strings.Builder, title string, lines []line) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString(styleSection.Render(title))
	sb.WriteByte('\n')
	for _, l := range lines {
		pad := keyColumnWidth - len(l.key)
		if pad < 2 {
			pad = 2
		}
		sb.WriteString("  ")
		sb.WriteString(styleKey.Render(l.key))
		if l.detail != "" {
			sb.WriteString(strings.Repeat(" ", pad))
			sb.WriteString(styleDim.Render(l.detail))
		}
		sb.WriteByte('\n')
	}
}

func fieldLines(o *cmpkit.Ordered[*cmpkit.FieldDecl], prop bool) []line {
	var lines []line
	o.Each(func(key string, f *cmpkit.FieldDecl) {
		var details []string
		if prop && f.Type != 0 {
			details = append(details, f.Type.String())
		}
		if prop && f.Required {
			details = append(details, "required")
		}
		switch {
		case f.Init != nil:
			details = append(details, "init")
		case f.Default != nil:
			if _, ok := f.Default.(cmpkit.DefaultFunc); ok {
				details = append(details, "default=func")
			} else {
				details = append(details, fmt.Sprintf("default=%v", f.Default))
			}
		}
		if len(f.After) > 0 {
			details = append(details, "after="+strings.Join(f.After, ","))
		}
		if f.Protected {
			details = append(details, "protected")
		}
		if f.Atom {
			details = append(details, "atom")
		}
		if f.Unique {
			details = append(details, "unique")
		}
		lines = append(lines, line{key, strings.Join(details, " ")})
	})
	return lines
}

func accessorLines(o *cmpkit.Ordered[*cmpkit.Accessor]) []line {
	var lines []line
	o.Each(func(key string, a *cmpkit.Accessor) {
		var details []string
		if a.Set == nil {
			details = append(details, "readonly")
		}
		if a.Cache {
			details = append(details, "cached")
		}
		if a.Protected {
			details = append(details, "protected")
		}
		lines = append(lines, line{key, strings.Join(details, " ")})
	})
	return lines
}

func methodLines(o *cmpkit.Ordered[*cmpkit.Method]) []line {
	var lines []line
	o.Each(func(key string, m *cmpkit.Method) {
		var details []string
		m.Hooks.Each(func(phase string, h cmpkit.HookDecl) {
			d := "hook=" + phase
			if len(h.After) > 0 {
				d += "(after " + strings.Join(h.After, ",") + ")"
			}
			details = append(details, d)
		})
		m.Watchers.Each(func(field string, _ cmpkit.WatchOptions) {
			details = append(details, "watch="+field)
		})
		lines = append(lines, line{key, strings.Join(details, " ")})
	})
	return lines
}

func watcherLines(watchers map[string][]cmpkit.WatchBinding) []line {
	keys := make([]string, 0, len(watchers))
	for k, list := range watchers {
		if len(list) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var lines []line
	for _, k := range keys {
		var handlers []string
		for _, b := range watchers[k] {
			h := "func"
			if b.Method != "" {
				h = b.Method
			} else if b.MethodFn != nil {
				h = "method"
			}
			if b.Immediate {
				h += "!"
			}
			if b.Deep {
				h += "*"
			}
			handlers = append(handlers, h)
		}
		lines = append(lines, line{k, strings.Join(handlers, ", ")})
	}
	return lines
}

func hookLines(hooks map[cmpkit.Hook][]cmpkit.HookBinding) []line {
	var lines []line
	for _, phase := range cmpkit.Hooks {
		list := hooks[phase]
		if len(list) == 0 {
			continue
		}
		names := make([]string, 0, len(list))
		for i, b := range list {
			name := b.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			if len(b.After) > 0 {
				name += "(after " + strings.Join(b.After, ",") + ")"
			}
			names = append(names, name)
		}
		lines = append(lines, line{string(phase), strings.Join(names, ", ")})
	}
	return lines
}

func modLines(mods map[string][]any) []line {
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]line, 0, len(keys))
	for _, k := range keys {
		values := make([]string, 0, len(mods[k]))
		for _, v := range mods[k] {
			if list, ok := v.([]any); ok && len(list) > 0 {
				values = append(values, fmt.Sprintf("[%v]", list[0]))
				continue
			}
			values = append(values, fmt.Sprint(v))
		}
		lines = append(lines, line{k, strings.Join(values, " ")})
	}
	return lines
}
