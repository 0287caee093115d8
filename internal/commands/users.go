package commands

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/review"
	"github.com/spendsense/operator-console/internal/signals"
)

func newSignalsCmd() *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "signals <user-id>",
		Short: "Show a user's behavioral signals",
		Long: `Show a user's computed signals grouped into Subscriptions, Savings,
Credit, Income and Other. --window selects the 30 or 180 day window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if window != 30 && window != 180 {
				return fmt.Errorf("--window must be 30 or 180, got %d", window)
			}
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			view, err := e.service().Signals(cmd.Context(), args[0], window)
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Signals for %s (%d-day window)", args[0], window)))
			if len(view.Groups) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No signals computed for this window."))
				return nil
			}
			for _, g := range view.Groups {
				fmt.Fprintln(out, labelStyle.Bold(true).Render(string(g.Category)))
				for _, entry := range g.Entries {
					fmt.Fprintf(out, "  %-34s %s\n", entry.Label, entry.Display)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", review.DefaultWindow, "Signal window in days (30 or 180)")
	return cmd
}

func newTracesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traces <user-id>",
		Short: "Show a user's persona decision traces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			tr, err := e.service().Traces(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Decision traces for "+args[0]))
			if len(tr.Traces) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No decision traces for this user."))
				return nil
			}
			for i, t := range tr.Traces {
				fmt.Fprintf(out, "%d. %s", i+1, lipgloss.NewStyle().Bold(true).Render(t.AssignedPersona))
				if t.PrimaryPersona != "" && t.PrimaryPersona != t.AssignedPersona {
					fmt.Fprintf(out, " (primary %s)", t.PrimaryPersona)
				}
				if !t.CreatedAt.IsZero() {
					fmt.Fprint(out, dimStyle.Render("  "+t.CreatedAt.Format("2006-01-02 15:04")))
				}
				fmt.Fprintln(out)
				if t.Rationale != "" {
					fmt.Fprintf(out, "   %s\n", t.Rationale)
				}
				for _, ev := range t.Evidence {
					fmt.Fprintf(out, "   • %s\n", ev)
				}
				if t.FeatureSnapshot != nil {
					for _, k := range t.FeatureSnapshot.Keys() {
						v, _ := t.FeatureSnapshot.Get(k)
						fmt.Fprintf(out, "     %-30s %s\n", signals.Label(k), signals.Format(v))
					}
				}
			}
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			list, err := e.service().Users(cmd.Context(), skip, limit)
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s users", humanize.Comma(int64(list.Total)))))

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(dimStyle).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return labelStyle.Bold(true).Padding(0, 1)
					}
					return lipgloss.NewStyle().Padding(0, 1)
				}).
				Headers("ID", "NAME", "EMAIL", "PERSONA", "RISK")
			for _, u := range list.Users {
				t.Row(u.UserID, u.DisplayName(), u.Email, review.PersonaLabel(u.Persona), review.RiskBadge(u.Persona).Text)
			}
			fmt.Fprintln(out, t.String())

			if shown := skip + len(list.Users); shown < list.Total {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Next page: spendsense users --skip %d --limit %d", shown, limit)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Users to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func newUserCmd() *cobra.Command {
	var (
		window   int
		features bool
	)

	cmd := &cobra.Command{
		Use:   "user <user-id>",
		Short: "Show one user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			d, err := e.client().GetUserDetail(cmd.Context(), args[0], window, features)
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(d.User.DisplayName()))
			row := func(label, value string) {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value)
			}
			row("ID", d.User.UserID)
			if d.User.Email != "" {
				row("Email", d.User.Email)
			}
			row("Persona", review.PersonaLabel(d.User.Persona))
			row("Risk", review.RiskBadge(d.User.Persona).Text)
			if !d.User.CreatedAt.IsZero() {
				row("Joined", humanize.Time(d.User.CreatedAt.Time))
			}
			if d.Consent != nil {
				row("Consent", consentText(d.Consent.Granted))
			}

			if d.Features != nil && d.Features.Len() > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, labelStyle.Bold(true).Render(fmt.Sprintf("Features (%d-day window)", d.WindowDays)))
				for _, g := range signals.GroupSnapshot(d.Features) {
					for _, entry := range g.Entries {
						fmt.Fprintf(out, "  %-34s %s\n", entry.Label, entry.Display)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", review.DefaultWindow, "Transaction window in days")
	cmd.Flags().BoolVar(&features, "features", false, "Include computed features")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate review counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			st, err := e.service().Stats(cmd.Context())
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("SpendSense overview"))
			row := func(label string, n int) {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-24s", label)), humanize.Comma(int64(n)))
			}
			row("Users", st.TotalUsers)
			row("Recommendations", st.TotalRecommendations)
			row("Pending", st.Pending)
			row("Approved", st.Approved)
			row("Flagged", st.Flagged)
			row("Rejected", st.Rejected)

			if len(st.PersonaDistribution) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, labelStyle.Bold(true).Render("Personas"))
				names := make([]string, 0, len(st.PersonaDistribution))
				for name := range st.PersonaDistribution {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					row("  "+name, st.PersonaDistribution[name])
				}
			}
			return nil
		},
	}
}

func consentText(granted bool) string {
	if granted {
		return successStyle.Render("granted")
	}
	return errorStyle.Render("not granted")
}
