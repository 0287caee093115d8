package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/review"
)

func newQueueCmd() *cobra.Command {
	var (
		status  string
		userID  string
		limit   int
		asJSON  bool
		details bool
		sortBy  string
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List the recommendation queue",
		Long: `List recommendations awaiting review.

Status is one of pending, approved, flagged, rejected or all.
--sort risk lists the most severe persona risk first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			if status == "" {
				status = e.cfg.Queue.DefaultStatus
			}
			st, ok := models.ParseReviewStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			if limit <= 0 {
				limit = e.cfg.Queue.Limit
			}

			switch sortBy {
			case "", "created", "risk":
			default:
				return fmt.Errorf("--sort must be created or risk")
			}

			q, err := e.service().Queue(cmd.Context(), models.QueueFilter{Status: st, UserID: userID, Limit: limit})
			if err != nil {
				return explain(err)
			}
			if sortBy == "risk" {
				// q is shared with the cache; sort a copy.
				sorted := *q
				sorted.Recommendations = append([]models.Recommendation(nil), q.Recommendations...)
				review.SortByRisk(sorted.Recommendations)
				q = &sorted
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(q)
			}

			scope := ""
			if userID != "" {
				scope = " for " + userID
			}
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d %s recommendations%s", q.Total, st, scope)))
			if len(q.Recommendations) == 0 {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("No %s recommendations.", st)))
				return nil
			}
			fmt.Fprintln(out, queueTable(q.Recommendations))
			if len(q.Recommendations) < q.Total {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Showing %d of %d. Use --limit to see more.", len(q.Recommendations), q.Total)))
			}

			if details {
				for i := range q.Recommendations {
					fmt.Fprintln(out)
					printRecommendation(cmd, &q.Recommendations[i])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Status filter (default from config)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Only this user's recommendations")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw queue as JSON")
	cmd.Flags().BoolVar(&details, "details", false, "Print rationale and action items")
	cmd.Flags().StringVar(&sortBy, "sort", "created", "Row order: created or risk")
	return cmd
}

func queueTable(recs []models.Recommendation) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return labelStyle.Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "USER", "PERSONA", "RISK", "STATUS", "PRIORITY", "TITLE")

	for i := range recs {
		rec := &recs[i]
		t.Row(
			rec.ID,
			rec.UserID,
			review.PersonaLabel(rec.Persona),
			review.RiskBadge(rec.Persona).Text,
			review.StatusBadge(rec).Text,
			review.PriorityBadge(rec.Priority).Text,
			rec.Title,
		)
	}
	return t.String()
}

func printRecommendation(cmd *cobra.Command, rec *models.Recommendation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", rec.ID, lipgloss.NewStyle().Bold(true).Render(rec.Title))
	if rec.Description != "" {
		fmt.Fprintf(out, "  %s\n", rec.Description)
	}
	fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Rationale:"), rec.Rationale)
	for _, item := range rec.ActionItems {
		fmt.Fprintf(out, "  • %s\n", item)
	}
	if rec.Impact != "" {
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Impact:"), rec.Impact)
	}
}

func newReviewCmds() []*cobra.Command {
	var cmds []*cobra.Command
	for _, action := range models.Actions {
		action := action // per-iteration copy (go directive is < 1.22)
		cmds = append(cmds, &cobra.Command{
			Use:   string(action) + " <recommendation-id>...",
			Short: strings.ToUpper(string(action[:1])) + string(action[1:]) + " recommendations",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runReview(cmd, action, args)
			},
		})
	}
	return cmds
}

func runReview(cmd *cobra.Command, action models.Action, ids []string) error {
	e, err := loadAuthedEnv(cmd)
	if err != nil {
		return err
	}
	svc := e.service()
	out := cmd.OutOrStdout()

	failed := 0
	for _, id := range ids {
		if err := svc.Act(cmd.Context(), id, action); err != nil {
			failed++
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %v", explain(err))))
			continue
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ %s %s", pastTense(action), id)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %s actions failed", failed, len(ids), action)
	}
	return nil
}

func pastTense(action models.Action) string {
	st := string(action.ResultStatus())
	return strings.ToUpper(st[:1]) + st[1:]
}
