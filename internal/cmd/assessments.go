package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/flow"
	"github.com/skillcheck-dev/skillcheck/internal/model"
	"github.com/skillcheck-dev/skillcheck/internal/result"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show your assessment counts and recent activity",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runDashboard),
}

var assessmentsCmd = &cobra.Command{
	Use:     "assessments",
	Aliases: []string{"a"},
	Short:   "Browse published assessments",
	RunE:    withDeps(runAssessmentsList),
}

var assessmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published assessments with your progress",
	Long: `List published assessments with your progress on each and the action
it offers (Start, Continue or View Results).

Examples:
  skillcheck assessments list
  skillcheck assessments list --match "Go*"`,
	Args: cobra.NoArgs,
	RunE: withDeps(runAssessmentsList),
}

var assessmentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAssessmentsShow),
}

var takeCmd = &cobra.Command{
	Use:   "take <id>",
	Short: "Take an assessment question by question",
	Long: `Take an assessment. Each question is shown with numbered choices; type
the number of your answer, or press enter to skip it. Skipped questions are
offered again before the answers are submitted.`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(runTake),
}

var resultCmd = &cobra.Command{
	Use:   "result <id>",
	Short: "Show the result of an assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runResult),
}

var (
	assessmentsMatch string
	resultDetails    bool
	resultPDF        string
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(assessmentsCmd)
	assessmentsCmd.AddCommand(assessmentsListCmd)
	assessmentsCmd.AddCommand(assessmentsShowCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(resultCmd)

	assessmentsCmd.PersistentFlags().StringVarP(&assessmentsMatch, "match", "m", "", "only titles matching this glob (e.g. \"Go*\")")

	resultCmd.Flags().BoolVarP(&resultDetails, "details", "d", false, "show every question with your answer")
	resultCmd.Flags().StringVar(&resultPDF, "pdf", "", "also export the result to this PDF file")
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid assessment id: %q", arg)
	}
	return id, nil
}

func runDashboard(cmd *cobra.Command, args []string, d *deps) error {
	u, err := d.requireUser()
	if err != nil {
		return err
	}
	stats, sample, err := d.browser.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sample {
		fmt.Fprintln(out, flow.SampleNotice)
		fmt.Fprintln(out)
	}
	printHeading(out, "Dashboard for "+u.DisplayName())
	fmt.Fprintf(out, "  Completed:   %d\n", stats.Stats.CompletedAssessments)
	fmt.Fprintf(out, "  In progress: %d\n", stats.Stats.InProgressAssessments)
	fmt.Fprintf(out, "  Not started: %d\n", stats.Stats.NotStartedAssessments)
	fmt.Fprintln(out)

	if len(stats.RecentAssessments) == 0 {
		fmt.Fprintln(out, "No recent activity. Run 'skillcheck assessments' to find one to take.")
		return nil
	}
	rows := make([][]string, 0, len(stats.RecentAssessments))
	for _, r := range stats.RecentAssessments {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.0f%%", *r.Score)
		}
		rows = append(rows, []string{strconv.Itoa(r.ID), r.Title, r.Status.Label(), score, r.Date})
	}
	printTable(out, []string{"ID", "Title", "Status", "Score", "Date"}, rows)
	return nil
}

func runAssessmentsList(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireUser(); err != nil {
		return err
	}
	listing, err := d.browser.List(cmd.Context(), assessmentsMatch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listing.Sample {
		fmt.Fprintln(out, flow.SampleNotice)
	}
	if len(listing.Entries) == 0 {
		if assessmentsMatch != "" {
			fmt.Fprintf(out, "No assessments match %q.\n", assessmentsMatch)
		} else {
			fmt.Fprintln(out, "No assessments are available yet.")
		}
		return nil
	}

	rows := make([][]string, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		a := e.Assessment
		status := model.StatusNotStarted.Label()
		if e.Attempt != nil {
			status = e.Attempt.Status.Label()
		}
		rows = append(rows, []string{
			strconv.Itoa(a.ID),
			a.Title,
			a.LanguageName,
			fmt.Sprintf("%d min", a.DurationMinutes),
			fmt.Sprintf("%d%%", a.PassingScore),
			status,
			string(e.Action),
		})
	}
	printTable(out, []string{"ID", "Title", "Language", "Duration", "Pass", "Status", "Action"}, rows)
	return nil
}

func runAssessmentsShow(cmd *cobra.Command, args []string, d *deps) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := d.requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := d.api.GetAssessment(ctx, id)
	if err != nil {
		return err
	}
	attempts, err := d.api.ListUserAssessments(ctx)
	if err != nil {
		return err
	}
	attempt := flow.FindAttempt(attempts, id)
	action := flow.ActionFor(attempt)

	out := cmd.OutOrStdout()
	printHeading(out, a.Title)
	if a.Description != "" {
		fmt.Fprintln(out, a.Description)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Language:      %s\n", a.LanguageName)
	fmt.Fprintf(out, "Questions:     %d\n", len(a.Questions))
	fmt.Fprintf(out, "Duration:      %d minutes\n", a.DurationMinutes)
	fmt.Fprintf(out, "Passing score: %d%%\n", a.PassingScore)
	if attempt != nil {
		fmt.Fprintf(out, "Your status:   %s\n", attempt.Status.Label())
	}
	fmt.Fprintln(out)

	if action == flow.ActionViewResults {
		fmt.Fprintf(out, "Run 'skillcheck result %d' to see your result.\n", id)
	} else {
		fmt.Fprintf(out, "Run 'skillcheck take %d' to %s.\n", id, strings.ToLower(string(action)))
	}
	return nil
}

func runTake(cmd *cobra.Command, args []string, d *deps) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := d.requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	p := newPrompter(cmd)

	sess, err := flow.Open(ctx, d.api, id, flow.WithSessionLogger(d.logger))
	if err != nil {
		return err
	}
	if _, err := d.browser.Start(ctx, id); err != nil {
		return err
	}

	a := sess.Assessment()
	questions := sess.Questions()
	printHeading(out, a.Title)
	fmt.Fprintf(out, "%d questions, suggested time %d minutes, passing score %d%%\n\n",
		len(questions), a.DurationMinutes, a.PassingScore)

	pending := make([]int, len(questions))
	for i := range questions {
		pending[i] = i
	}
	for {
		for _, i := range pending {
			if err := askQuestion(p, out, sess, i); err != nil {
				return err
			}
		}

		unanswered := sess.Unanswered()
		if len(unanswered) == 0 {
			break
		}
		ok, err := p.confirm(fmt.Sprintf("%d question(s) unanswered. Submit anyway?", len(unanswered)))
		if err != nil {
			return err
		}
		if ok {
			break
		}
		pending = pending[:0]
		for i, q := range questions {
			for _, qid := range unanswered {
				if q.ID == qid {
					pending = append(pending, i)
				}
			}
		}
	}

	if err := sess.CanSubmit(); err != nil {
		return err
	}
	for {
		_, err := sess.Submit(ctx)
		if err == nil {
			break
		}
		fmt.Fprintln(out, errors.UserMessage(err))
		var subErr *errors.SubmissionError
		if !errors.As(err, &subErr) {
			return err
		}
		retry, perr := p.confirm(fmt.Sprintf("Retry the remaining %d answer(s)?", len(sess.Pending())))
		if perr != nil {
			return perr
		}
		if !retry {
			return fmt.Errorf("assessment not submitted; %d answer(s) were not saved", len(sess.Pending()))
		}
	}

	fmt.Fprintf(out, "\nAssessment submitted after %s.\n\n", sess.Elapsed().Round(time.Second))
	report, err := result.Load(ctx, d.api, id)
	if err != nil {
		return err
	}
	printReport(cmd, report, false)
	return nil
}

// askQuestion prompts for question i until a valid choice or a skip.
func askQuestion(p *prompter, out io.Writer, sess *flow.Session, i int) error {
	questions := sess.Questions()
	q := questions[i]

	header := fmt.Sprintf("Question %d of %d", i+1, len(questions))
	if q.SubtopicName != "" {
		header += " [" + q.SubtopicName + "]"
	}
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, q.Text)
	selected, hasSelection := sess.Selected(q.ID)
	for n, c := range q.Choices {
		mark := " "
		if hasSelection && c.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(out, "  %s%d) %s\n", mark, n+1, c.Text)
	}

	for {
		s, err := p.line(fmt.Sprintf("Answer (1-%d, enter to skip): ", len(q.Choices)))
		if err != nil {
			return err
		}
		if s == "" {
			fmt.Fprintln(out)
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > len(q.Choices) {
			fmt.Fprintf(out, "Please enter a number between 1 and %d.\n", len(q.Choices))
			continue
		}
		if err := sess.Select(q.ID, q.Choices[n-1].ID); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return nil
	}
}

func runResult(cmd *cobra.Command, args []string, d *deps) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := d.requireUser(); err != nil {
		return err
	}
	report, err := result.Load(cmd.Context(), d.api, id)
	if err != nil {
		var nf *errors.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Errorf("no result for assessment %d yet; take it with 'skillcheck take %d'", id, id)
		}
		return err
	}
	printReport(cmd, report, resultDetails)

	if resultPDF != "" {
		if err := writePDF(resultPDF, report); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved %s\n", resultPDF)
	}
	return nil
}

func writePDF(path string, r *result.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create pdf")
	}
	if err := result.WritePDF(f, r, time.Now()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printReport(cmd *cobra.Command, r *result.Report, details bool) {
	out := cmd.OutOrStdout()
	verdict := "FAILED"
	if r.Passed() {
		verdict = "PASSED"
	}

	printHeading(out, r.Title())
	fmt.Fprintf(out, "%s  %d%%  %s\n", verdict, r.Percent(), bar(r.Percent(), 30))
	fmt.Fprintf(out, "%d of %d correct, passing score %d%%\n", r.Correct(), r.Total(), r.Result.PassingScore)
	fmt.Fprintf(out, "Status: %s\n", r.Status())
	if r.Result.TimeTaken > 0 {
		fmt.Fprintf(out, "Time taken: %s\n", r.Result.TimeTaken)
	}

	if subs := r.Subtopics(); len(subs) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(subs))
		for _, s := range subs {
			name := s.Name
			if name == "" {
				name = "General"
			}
			rows = append(rows, []string{name, fmt.Sprintf("%d/%d", s.Correct, s.Total), fmt.Sprintf("%d%%", s.Percent())})
		}
		printTable(out, []string{"Subtopic", "Correct", "Score"}, rows)
	}

	if !details {
		return
	}
	fmt.Fprintln(out)
	for _, q := range r.Details() {
		mark := "✗"
		if q.Correct {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s %d. %s\n", mark, q.Number, q.Question)
		selected := q.Selected
		if selected == "" {
			selected = "(no answer)"
		}
		fmt.Fprintf(out, "    Your answer: %s (%d/%d points)\n", selected, q.EarnedPoints, q.Points)
		if !q.Correct && q.CorrectText != "" {
			fmt.Fprintf(out, "    Correct:     %s\n", q.CorrectText)
		}
	}
}
