package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Dracula" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Dracula Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Dracula"); got != "Slate" {
		t.Fatalf("NextTheme(Dracula) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("Unknown"); got != "Dracula" {
		t.Fatalf("NextTheme(Unknown) = %q, want Dracula", got)
	}
}

func TestGetTheme_FallsBack(t *testing.T) {
	if got := GetTheme("Nope").Name; got != "Dracula" {
		t.Fatalf("GetTheme(Nope).Name = %q, want Dracula", got)
	}
}

func TestStatusColors(t *testing.T) {
	for _, name := range ThemeNames() {
		theme := GetTheme(name)
		styles := theme.Styles()
		for _, status := range []string{"stopped", "checking", "downloading", "seeding", "error"} {
			if _, ok := theme.StatusColors[status]; !ok {
				t.Fatalf("%s theme has no color for %q", name, status)
			}
		}
		if got := styles.StatusColor("bogus"); got != theme.Muted {
			t.Fatalf("%s StatusColor(bogus) = %q, want %q", name, got, theme.Muted)
		}
	}
}
