package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/review"
	"github.com/spendsense/operator-console/internal/signals"
)

func (a *App) View() (output string) {
	// Recover from any panics to prevent TUI crash
	defer func() {
		if r := recover(); r != nil {
			output = fmt.Sprintf("\n  Error rendering view: %v\n\n  Press 'q' to quit.", r)
		}
	}()

	if a.quitting {
		return ""
	}
	if !a.ready {
		return "\n  " + a.spinner.View() + " Starting..."
	}

	w, h := a.state.GetSize()
	if w < 60 {
		w = 60
	}
	if h < 12 {
		h = 12
	}

	var b strings.Builder
	b.WriteString(a.viewHeader(w))
	b.WriteString("\n")
	if banner := a.viewBanner(w); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(a.viewTabs(w))
	b.WriteString("\n")
	if a.searching {
		b.WriteString(a.viewSearch(w))
		b.WriteString("\n")
	}
	b.WriteString(a.viewContent(w))

	lines := strings.Count(b.String(), "\n")
	for lines < h-2 {
		b.WriteString("\n")
		lines++
	}
	b.WriteString(a.viewFooter(w))

	out := b.String()
	if a.showModal {
		out = a.overlayModal(w, h)
	}
	if a.showHelp {
		out = a.overlayHelp(w, h)
	}
	if time.Now().Before(a.toastExpiry) && a.toast != "" {
		out = a.overlayToast(out, w)
	}
	return out
}

func (a *App) viewHeader(w int) string {
	logo := a.theme.LogoDot.Render("◉") + a.theme.Logo.Render(" SpendSense Operator")

	var statusStr string
	switch {
	case a.state.Live():
		statusStr = a.theme.StatusSuccess.Render("● Live")
	case len(a.state.FailedChannels()) > 0:
		statusStr = a.theme.StatusError.Render("● Offline")
	default:
		statusStr = a.spinner.View() + " Connecting"
	}

	right := statusStr
	if subject, exp := a.state.GetOperator(); subject != "" {
		op := subject
		if !exp.IsZero() {
			op += " (token expires " + humanize.Time(exp) + ")"
		}
		right += "  " + a.theme.UserEmail.Render(op)
	}

	gap := w - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return a.theme.HeaderContainer.Width(w).Render(logo + strings.Repeat(" ", gap) + right)
}

// viewBanner is the persistent notice shown once a channel stops retrying.
func (a *App) viewBanner(w int) string {
	failed := a.state.FailedChannels()
	if len(failed) == 0 {
		return ""
	}
	text := fmt.Sprintf("Live updates stopped (%s). Data may be stale. Press [c] to reconnect.",
		strings.Join(failed, ", "))
	return a.theme.Banner.Width(w).Render(text)
}

func (a *App) viewTabs(w int) string {
	var tabs []string
	for i, name := range TabNames() {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		if TabIndex(i) == a.activeTab {
			tabs = append(tabs, a.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, a.theme.TabInactive.Render(label))
		}
	}
	return a.theme.TabContainer.Width(w).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (a *App) viewSearch(w int) string {
	var b strings.Builder
	b.WriteString(a.theme.InputFocus.Render(a.search.View()))
	b.WriteString("\n")

	if a.usersErr != nil {
		b.WriteString("  " + a.theme.StatusError.Render(errorText(a.usersErr)) + "\n")
		return b.String()
	}
	matches := a.matches()
	if len(matches) == 0 {
		b.WriteString("  " + a.theme.ValueMuted.Render("No matching users") + "\n")
		return b.String()
	}
	for i, u := range matches {
		if i >= 8 {
			b.WriteString("  " + a.theme.ValueMuted.Render(fmt.Sprintf("... %d more", len(matches)-i)) + "\n")
			break
		}
		line := fmt.Sprintf("%-12s %s", u.UserID, u.Name)
		if i == a.matchIdx {
			b.WriteString(a.theme.ListCursor.Render("▸") + a.theme.ListItemActive.Render(line) + "\n")
		} else {
			b.WriteString(" " + a.theme.ListItem.Render(line) + "\n")
		}
	}
	return b.String()
}

func (a *App) viewContent(w int) string {
	switch a.activeTab {
	case TabQueue:
		return a.viewQueue(w)
	case TabSignals, TabTraces:
		return a.viewDetail()
	case TabOverview:
		return a.viewOverview(w)
	}
	return ""
}

func (a *App) viewQueue(w int) string {
	var b strings.Builder

	scope := "all users"
	if a.filter.UserID != "" {
		scope = a.filter.UserID
	}
	title := fmt.Sprintf("Recommendations · %s · %s", strings.ToUpper(string(a.filter.Status)), scope)
	if a.queue != nil && a.queueErr == nil {
		title += fmt.Sprintf(" · %d total", a.queue.Total)
	}
	b.WriteString(a.theme.Title.Render(title))
	b.WriteString("\n")

	switch {
	case a.queueErr != nil:
		b.WriteString(a.theme.StatusError.Render("Failed to load recommendations: " + errorText(a.queueErr)))
		return b.String()
	case a.queue == nil:
		b.WriteString(a.spinner.View() + " Loading recommendations...")
		return b.String()
	case len(a.queue.Recommendations) == 0:
		b.WriteString(a.theme.ValueMuted.Render(fmt.Sprintf("No %s recommendations.", a.filter.Status)))
		return b.String()
	}
	if a.queueLoading {
		b.WriteString(a.theme.ValueMuted.Render(a.spinner.View()+" refreshing") + "\n")
	}

	for i := range a.queue.Recommendations {
		rec := &a.queue.Recommendations[i]
		var badges []string
		for _, bd := range review.Badges(rec) {
			badges = append(badges, a.theme.Badge(bd))
		}
		title := truncate(rec.Title, w-60)
		if a.pending[rec.ID] || a.svc.InFlight(rec.ID) {
			title += a.theme.ValueMuted.Render("  working...")
		}
		line := fmt.Sprintf("%-10s %-10s %s  %s", rec.ID, rec.UserID, strings.Join(badges, " "), title)
		if i == a.cursor {
			b.WriteString(a.theme.ListCursor.Render("▸") + a.theme.ListItemActive.Render(line))
		} else {
			b.WriteString(" " + a.theme.ListItem.Render(line))
		}
		b.WriteString("\n")
	}

	if rec := a.selected(); rec != nil {
		b.WriteString("\n")
		b.WriteString(HorizontalLine(w - 4))
		b.WriteString("\n")
		b.WriteString(a.viewRecommendation(rec))
	}
	return b.String()
}

func (a *App) viewRecommendation(rec *models.Recommendation) string {
	var b strings.Builder
	b.WriteString(a.theme.Value.Bold(true).Render(rec.Title))
	b.WriteString("\n")
	if rec.Description != "" {
		b.WriteString(a.theme.Label.Render(rec.Description) + "\n")
	}
	b.WriteString(a.theme.Label.Render("Rationale: ") + a.theme.Value.Render(rec.Rationale) + "\n")
	if len(rec.ActionItems) > 0 {
		b.WriteString(a.theme.Label.Render("Action items:") + "\n")
		for _, item := range rec.ActionItems {
			b.WriteString("  • " + a.theme.Value.Render(item) + "\n")
		}
	}
	if rec.Impact != "" {
		b.WriteString(a.theme.Label.Render("Impact: ") + a.theme.StatusInfo.Render(rec.Impact) + "\n")
	}
	if rec.Inconsistent() {
		b.WriteString(a.theme.StatusWarning.Render("More than one review flag is set; shown as "+string(rec.Status())) + "\n")
	}
	if !a.canAct(rec) && rec.IsTerminal() {
		b.WriteString(a.theme.ValueMuted.Render("Already reviewed.") + "\n")
	}
	return b.String()
}

// viewDetail renders the scrollable Signals or Traces pane.
func (a *App) viewDetail() string {
	if a.focusUser == "" {
		return a.theme.ValueMuted.Render("Select a user with [/] or press [enter] on a recommendation.")
	}
	return a.viewport.View()
}

// refreshViewport re-renders the Signals/Traces content into the viewport.
func (a *App) refreshViewport() {
	switch a.activeTab {
	case TabSignals:
		a.viewport.SetContent(a.renderSignals())
	case TabTraces:
		a.viewport.SetContent(a.renderTraces())
	}
}

func (a *App) renderSignals() string {
	var b strings.Builder
	b.WriteString(a.theme.Title.Render(fmt.Sprintf("Signals · %s · %d-day window", a.focusUser, a.window)))
	b.WriteString("\n")

	switch {
	case a.signalsErr != nil:
		b.WriteString(a.theme.StatusError.Render("Failed to load signals: " + errorText(a.signalsErr)))
		return b.String()
	case a.signals == nil:
		b.WriteString("Loading signals...")
		return b.String()
	case len(a.signals.Groups) == 0:
		b.WriteString(a.theme.ValueMuted.Render("No signals computed for this window."))
		return b.String()
	}

	if !a.signals.Snapshot.ComputedAt.IsZero() {
		b.WriteString(a.theme.ValueMuted.Render("computed "+humanize.Time(a.signals.Snapshot.ComputedAt.Time)) + "\n\n")
	}
	for _, g := range a.signals.Groups {
		b.WriteString(a.theme.Label.Bold(true).Render(string(g.Category)))
		b.WriteString("\n")
		for _, e := range g.Entries {
			display := e.Display
			if e.Value.Kind() == signals.KindMap {
				display = "\n" + indent(display, "      ")
			}
			b.WriteString(fmt.Sprintf("  %-34s %s\n", a.theme.Label.Render(e.Label), a.theme.Value.Render(display)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderTraces() string {
	var b strings.Builder
	b.WriteString(a.theme.Title.Render("Decision traces · " + a.focusUser))
	b.WriteString("\n")

	switch {
	case a.tracesErr != nil:
		b.WriteString(a.theme.StatusError.Render("Failed to load traces: " + errorText(a.tracesErr)))
		return b.String()
	case a.traces == nil:
		b.WriteString("Loading traces...")
		return b.String()
	case len(a.traces.Traces) == 0:
		b.WriteString(a.theme.ValueMuted.Render("No decision traces for this user."))
		return b.String()
	}

	for _, tr := range a.traces.Traces {
		b.WriteString(a.theme.Value.Bold(true).Render(tr.AssignedPersona))
		if tr.PrimaryPersona != "" && tr.PrimaryPersona != tr.AssignedPersona {
			b.WriteString(a.theme.ValueMuted.Render(" (primary " + tr.PrimaryPersona + ")"))
		}
		if !tr.CreatedAt.IsZero() {
			b.WriteString(a.theme.ValueMuted.Render("  " + humanize.Time(tr.CreatedAt.Time)))
		}
		b.WriteString("\n")
		if tr.Rationale != "" {
			b.WriteString("  " + a.theme.Label.Render(tr.Rationale) + "\n")
		}
		for _, ev := range tr.Evidence {
			b.WriteString("  • " + ev + "\n")
		}
		if tr.FeatureSnapshot != nil {
			for _, k := range tr.FeatureSnapshot.Keys() {
				v, _ := tr.FeatureSnapshot.Get(k)
				b.WriteString(fmt.Sprintf("    %-30s %s\n", signals.Label(k), signals.Format(v)))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) viewOverview(w int) string {
	var b strings.Builder
	b.WriteString(a.theme.Title.Render("Overview"))
	b.WriteString("\n")

	switch {
	case a.statsErr != nil:
		b.WriteString(a.theme.StatusError.Render("Failed to load stats: " + errorText(a.statsErr)))
		return b.String()
	case a.stats == nil:
		b.WriteString(a.spinner.View() + " Loading stats...")
		return b.String()
	}

	st := a.stats
	row := func(label string, n int) {
		b.WriteString(fmt.Sprintf("  %-24s %s\n", a.theme.Label.Render(label), a.theme.Value.Render(humanize.Comma(int64(n)))))
	}
	row("Users", st.TotalUsers)
	row("Recommendations", st.TotalRecommendations)
	row("Pending", st.Pending)
	row("Approved", st.Approved)
	row("Flagged", st.Flagged)
	row("Rejected", st.Rejected)

	if len(st.PersonaDistribution) > 0 {
		b.WriteString("\n" + a.theme.Label.Bold(true).Render("Personas") + "\n")
		names := make([]string, 0, len(st.PersonaDistribution))
		for name := range st.PersonaDistribution {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, st.PersonaDistribution[name])
		}
	}
	return b.String()
}

func (a *App) viewFooter(w int) string {
	a.help.Width = w / 2
	hints := a.help.ShortHelpView(append(a.keys.tabKeys(a.activeTab), a.keys.Help, a.keys.Quit))

	right := a.theme.ValueMuted.Render(a.state.APIOrigin)
	gap := w - lipgloss.Width(hints) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return a.theme.FooterContainer.Width(w).Render(hints + strings.Repeat(" ", gap) + right)
}

func (a *App) overlayModal(w, h int) string {
	content := a.theme.ModalTitle.Render(a.modalTitle) + "\n\n" +
		a.theme.ModalContent.Render(a.modalMessage) + "\n\n" +
		RenderKeyHelp("y", "yes") + "  " + RenderKeyHelp("n", "no")

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		a.theme.ModalContainer.Render(content),
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#000000")),
	)
}

func (a *App) overlayHelp(w, h int) string {
	a.help.Width = w - 8
	content := a.theme.ModalTitle.Render("Keyboard Shortcuts") + "\n\n" +
		a.help.FullHelpView(a.keys.FullHelp()) + "\n\n" +
		a.theme.ValueMuted.Render("Press ? or Esc to close")

	box := lipgloss.NewStyle().
		Background(ColorSurface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(1, 2).
		Render(content)

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#000000")),
	)
}

func (a *App) overlayToast(base string, w int) string {
	maxLen := w - 8
	if maxLen < 10 {
		maxLen = 10
	}
	style := a.theme.Toast
	if a.toastErr {
		style = style.Foreground(ColorError).BorderForeground(ColorError)
	}
	toast := style.Render(truncate(a.toast, maxLen))

	x := (w - lipgloss.Width(toast)) / 2
	return overlay(x, 2, toast, base)
}

func truncate(s string, max int) string {
	if max < 3 {
		max = 3
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-2]) + ".."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// overlay draws top over base starting at column x, row y.
func overlay(x, y int, top, base string) string {
	if x < 0 {
		x = 0
	}
	baseLines := strings.Split(base, "\n")
	for i, line := range strings.Split(top, "\n") {
		row := y + i
		if row < 0 || row >= len(baseLines) {
			continue
		}
		baseLine := baseLines[row]
		baseW := lipgloss.Width(baseLine)

		var b strings.Builder
		if baseW >= x {
			b.WriteString(lipgloss.NewStyle().MaxWidth(x).Render(baseLine))
		} else {
			b.WriteString(baseLine + strings.Repeat(" ", x-baseW))
		}
		b.WriteString(line)
		if rest := baseW - x - lipgloss.Width(line); rest > 0 {
			b.WriteString(strings.Repeat(" ", rest))
		}
		baseLines[row] = b.String()
	}
	return strings.Join(baseLines, "\n")
}
