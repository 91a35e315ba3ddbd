package domain

// Theme is the per-device display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	DefaultTheme = ThemeDark
)

func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}
