package commands

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

func newConsentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage a user's insight consent",
		Long:  `Grant, revoke or inspect whether a user has consented to budget insights.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <user-id>",
		Short: "Grant consent for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}
			c, err := e.client().GrantConsent(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s consent for %s: %s\n", successStyle.Render("✓"), c.UserID, consentText(c.Granted))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Revoke consent for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}
			if err := e.client().RevokeConsent(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s consent revoked for %s\n", successStyle.Render("✓"), args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's consent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}
			c, err := e.client().GetConsent(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Consent for %s: %s\n", args[0], consentText(c.Granted))
			if c.GrantedAt != nil {
				fmt.Fprintln(out, dimStyle.Render("  granted "+c.GrantedAt.Format("2006-01-02 15:04")))
			}
			if c.RevokedAt != nil {
				fmt.Fprintln(out, dimStyle.Render("  revoked "+c.RevokedAt.Format("2006-01-02 15:04")))
			}
			return nil
		},
	})

	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var (
		feedbackType string
		insightType  string
	)

	cmd := &cobra.Command{
		Use:   "feedback <user-id> <insight-id>",
		Short: "Record like/dislike feedback on an insight",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ft := models.FeedbackType(strings.ToLower(feedbackType))
			if ft != models.FeedbackLike && ft != models.FeedbackDislike {
				return fmt.Errorf("--type must be like or dislike, got %q", feedbackType)
			}
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			err = e.client().SubmitFeedback(cmd.Context(), models.Feedback{
				UserID:       args[0],
				InsightID:    args[1],
				InsightType:  insightType,
				FeedbackType: ft,
				Metadata:     map[string]any{"source": "operator-console"},
			})
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s recorded for %s\n", successStyle.Render("✓"), ft, args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&feedbackType, "type", "t", "", "like or dislike")
	cmd.Flags().StringVar(&insightType, "insight-type", "", "Insight kind the feedback refers to")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newInsightsCmd() *cobra.Command {
	var params []string

	kinds := make([]string, len(models.InsightKinds))
	for i, k := range models.InsightKinds {
		kinds[i] = string(k)
	}

	cmd := &cobra.Command{
		Use:       "insights <kind> <user-id>",
		Short:     "Fetch an insight for a user",
		Long:      "Fetch an insight for a user. Kinds: " + strings.Join(kinds, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseInsightKind(args[0])
			if !ok {
				return fmt.Errorf("unknown insight %q (want one of %s)", args[0], strings.Join(kinds, ", "))
			}
			q, err := parseParams(params)
			if err != nil {
				return err
			}
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			in, err := e.client().GetInsight(cmd.Context(), kind, args[1], q)
			if err != nil {
				return explain(err)
			}
			printInsight(cmd.OutOrStdout(), in)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Extra query parameter key=value (repeatable)")
	return cmd
}

func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Budget actions",
	}

	var params []string
	generate := &cobra.Command{
		Use:   "generate <user-id>",
		Short: "Generate a suggested budget (requires consent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseParams(params)
			if err != nil {
				return err
			}
			e, err := loadAuthedEnv(cmd)
			if err != nil {
				return err
			}

			in, err := e.client().GenerateBudget(cmd.Context(), args[0], q)
			if err != nil {
				return explain(err)
			}
			printInsight(cmd.OutOrStdout(), in)
			return nil
		},
	}
	generate.Flags().StringArrayVarP(&params, "param", "p", nil, "Extra query parameter key=value (repeatable)")
	cmd.AddCommand(generate)
	return cmd
}

func parseParams(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		q.Add(k, v)
	}
	return q, nil
}

func printInsight(out io.Writer, in *models.Insight) {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s for %s", in.Kind, in.UserID)))
	if in.Data == nil || in.Data.Len() == 0 {
		fmt.Fprintln(out, dimStyle.Render("No data."))
		return
	}
	width := 0
	for _, k := range in.Data.Keys() {
		if l := len(signals.Label(k)); l > width {
			width = l
		}
	}
	for _, k := range in.Data.Keys() {
		v, _ := in.Data.Get(k)
		display := signals.Format(v)
		if v.Kind() == signals.KindMap {
			display = "\n" + indentLines(display, strings.Repeat(" ", 4))
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-"+strconv.Itoa(width)+"s", signals.Label(k))), display)
	}
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
