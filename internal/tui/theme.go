package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spendsense/operator-console/internal/review"
)

// Palette. Risk and status badges share the semantic colors.
var (
	ColorSurface      = lipgloss.Color("#161a20")
	ColorSurfaceLight = lipgloss.Color("#1e232b")
	ColorBorder       = lipgloss.Color("#2a313b")

	ColorAccent    = lipgloss.Color("#14b8a6")
	ColorAccentDim = lipgloss.Color("#115e59")

	ColorSuccess = lipgloss.Color("#30d158")
	ColorWarning = lipgloss.Color("#ffd60a")
	ColorError   = lipgloss.Color("#ff453a")
	ColorInfo    = lipgloss.Color("#64d2ff")
	ColorOrange  = lipgloss.Color("#ff9f0a")

	ColorText      = lipgloss.Color("#f4f4f5")
	ColorTextDim   = lipgloss.Color("#c8ccd2")
	ColorTextMuted = lipgloss.Color("#7d8590")

	colorInk   = lipgloss.Color("#0b0d10")
	colorPaper = lipgloss.Color("#ffffff")
)

// Theme holds the dashboard styles.
type Theme struct {
	// Chrome
	HeaderContainer lipgloss.Style
	Logo            lipgloss.Style
	LogoDot         lipgloss.Style
	UserEmail       lipgloss.Style
	TabContainer    lipgloss.Style
	TabActive       lipgloss.Style
	TabInactive     lipgloss.Style
	FooterContainer lipgloss.Style
	Banner          lipgloss.Style

	// Text
	Title         lipgloss.Style
	Label         lipgloss.Style
	Value         lipgloss.Style
	ValueMuted    lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusInfo    lipgloss.Style

	// Queue rows
	ListItem       lipgloss.Style
	ListItemActive lipgloss.Style
	ListCursor     lipgloss.Style

	// Overlays
	ModalContainer lipgloss.Style
	ModalTitle     lipgloss.Style
	ModalContent   lipgloss.Style
	Toast          lipgloss.Style
	InputFocus     lipgloss.Style

	Divider lipgloss.Style
	Help    lipgloss.Style
	HelpKey lipgloss.Style
	Spinner lipgloss.Style

	badges map[review.BadgeKind]lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// bar is a full-width strip with a single border line on one side.
func bar(top bool) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(ColorSurface).
		Padding(0, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(top).
		BorderBottom(!top).
		BorderForeground(ColorBorder)
}

func tab(bg, text lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Background(bg).Foreground(text).Padding(0, 2).MarginRight(1)
}

func badge(bg, text lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Background(bg).Foreground(text).Padding(0, 1).Bold(true)
}

// NewTheme builds the console styles.
func NewTheme() *Theme {
	boxed := lipgloss.NewStyle().
		Background(ColorSurface).
		BorderStyle(lipgloss.RoundedBorder())

	t := &Theme{
		HeaderContainer: bar(false),
		Logo:            fg(ColorText).Bold(true),
		LogoDot:         fg(ColorAccent).Bold(true),
		UserEmail:       fg(ColorTextDim),
		TabContainer:    lipgloss.NewStyle().Background(ColorSurface).Padding(0, 2),
		TabActive:       tab(ColorAccent, colorInk).Bold(true),
		TabInactive:     tab(ColorSurfaceLight, ColorTextDim),
		FooterContainer: bar(true),
		Banner:          lipgloss.NewStyle().Background(ColorError).Foreground(colorPaper).Bold(true).Padding(0, 2),

		Title:         fg(ColorText).Bold(true).MarginBottom(1),
		Label:         fg(ColorTextDim),
		Value:         fg(ColorText),
		ValueMuted:    fg(ColorTextMuted),
		StatusSuccess: fg(ColorSuccess),
		StatusError:   fg(ColorError),
		StatusWarning: fg(ColorWarning),
		StatusInfo:    fg(ColorInfo),

		ListItem:       fg(ColorText).Padding(0, 1),
		ListItemActive: fg(ColorText).Background(ColorAccentDim).Padding(0, 1),
		ListCursor:     fg(ColorAccent).Bold(true),

		ModalContainer: boxed.BorderForeground(ColorAccent).Padding(1, 2).Width(50),
		ModalTitle:     fg(ColorText).Bold(true).MarginBottom(1),
		ModalContent:   fg(ColorTextDim).MarginBottom(1),
		Toast:          boxed.Foreground(ColorSuccess).BorderForeground(ColorSuccess).Padding(0, 2),
		InputFocus:     boxed.Background(ColorSurfaceLight).Foreground(ColorText).BorderForeground(ColorAccent).Padding(0, 1),

		Divider: fg(ColorBorder),
		Help:    fg(ColorTextMuted),
		HelpKey: fg(ColorAccent).Bold(true),
		Spinner: fg(ColorAccent),
	}

	t.badges = map[review.BadgeKind]lipgloss.Style{
		review.BadgeRiskCritical: badge(ColorError, colorPaper),
		review.BadgeRiskHigh:     badge(ColorOrange, colorInk),
		review.BadgeRiskMedium:   badge(ColorWarning, colorInk),
		review.BadgeRiskLow:      badge(ColorInfo, colorInk),
		review.BadgeRiskMinimal:  badge(ColorSuccess, colorInk),
		review.BadgeRiskUnknown:  badge(ColorSurfaceLight, ColorTextMuted),

		review.BadgeStatusPending:  badge(ColorSurfaceLight, ColorTextDim),
		review.BadgeStatusApproved: badge(ColorSuccess, colorInk),
		review.BadgeStatusFlagged:  badge(ColorWarning, colorInk),
		review.BadgeStatusRejected: badge(ColorError, colorPaper),

		review.BadgePriorityHigh:    badge(ColorError, colorPaper),
		review.BadgePriorityMedium:  badge(ColorWarning, colorInk),
		review.BadgePriorityLow:     badge(ColorSurfaceLight, ColorTextDim),
		review.BadgePriorityUnknown: badge(ColorSurfaceLight, ColorTextMuted),

		review.BadgePersona: badge(ColorAccentDim, colorPaper),
	}
	return t
}

// DefaultTheme is the global theme instance
var DefaultTheme = NewTheme()

// Badge renders a review badge; unknown kinds fall back to the neutral style.
func (t *Theme) Badge(b review.Badge) string {
	style, ok := t.badges[b.Kind]
	if !ok {
		style = t.badges[review.BadgeRiskUnknown]
	}
	return style.Render(b.Text)
}

// RenderKeyHelp renders a key binding hint
func RenderKeyHelp(key, label string) string {
	return DefaultTheme.HelpKey.Render("["+key+"]") + " " + DefaultTheme.Help.Render(label)
}

// HorizontalLine draws a divider of the given width.
func HorizontalLine(width int) string {
	return DefaultTheme.Divider.Render(strings.Repeat("─", max(width, 0)))
}
