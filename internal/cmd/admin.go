package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillcheck-dev/skillcheck/internal/admin"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage assessments, users and the catalog (administrators only)",
	Long: `Manage assessments, users and the catalog. Every admin command requires
an administrator account; without a subcommand the overview is shown.`,
	Args: cobra.NoArgs,
	RunE: withDeps(runAdminOverview),
}

var adminAssessmentsCmd = &cobra.Command{
	Use:   "assessments",
	Short: "Manage assessments",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminAssessmentsList),
}

var adminAssessmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every assessment, published or not",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminAssessmentsList),
}

var adminAssessmentsTemplateCmd = &cobra.Command{
	Use:   "template [id]",
	Short: "Print an assessment as an editable YAML draft",
	Long: `Print an assessment as a YAML draft. Without an id an empty draft with
the default duration and passing score is printed.

Examples:
  skillcheck admin assessments template > go-basics.yaml
  skillcheck admin assessments template 3 > existing.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: withDeps(runAdminAssessmentsTemplate),
}

var adminAssessmentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an assessment from a YAML draft",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminAssessmentsCreate),
}

var adminAssessmentsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace an assessment with a YAML draft",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAdminAssessmentsUpdate),
}

var adminAssessmentsPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Make an assessment visible to users",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(publishRunner(true)),
}

var adminAssessmentsUnpublishCmd = &cobra.Command{
	Use:   "unpublish <id>",
	Short: "Hide an assessment from users",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(publishRunner(false)),
}

var adminAssessmentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAdminAssessmentsDelete),
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminUsersList),
}

var adminUsersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every user with their role",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminUsersList),
}

var adminUsersRoleCmd = &cobra.Command{
	Use:   "role <user-id> <admin|user>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE:  withDeps(runAdminUsersRole),
}

var adminLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List or add languages",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminLanguagesList),
}

var adminLanguagesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a language",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAdminLanguagesAdd),
}

var adminSubtopicsCmd = &cobra.Command{
	Use:   "subtopics",
	Short: "List or add subtopics",
	Args:  cobra.NoArgs,
	RunE:  withDeps(runAdminSubtopicsList),
}

var adminSubtopicsAddCmd = &cobra.Command{
	Use:   "add <language-id> <name>",
	Short: "Add a subtopic to a language",
	Args:  cobra.ExactArgs(2),
	RunE:  withDeps(runAdminSubtopicsAdd),
}

var (
	adminDraftFile   string
	adminDeleteYes   bool
	adminDescription string
	adminLanguage    int
)

func init() {
	rootCmd.AddCommand(adminCmd)

	adminCmd.AddCommand(adminAssessmentsCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsListCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsTemplateCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsCreateCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsUpdateCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsPublishCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsUnpublishCmd)
	adminAssessmentsCmd.AddCommand(adminAssessmentsDeleteCmd)

	adminCmd.AddCommand(adminUsersCmd)
	adminUsersCmd.AddCommand(adminUsersListCmd)
	adminUsersCmd.AddCommand(adminUsersRoleCmd)

	adminCmd.AddCommand(adminLanguagesCmd)
	adminLanguagesCmd.AddCommand(adminLanguagesAddCmd)
	adminCmd.AddCommand(adminSubtopicsCmd)
	adminSubtopicsCmd.AddCommand(adminSubtopicsAddCmd)

	for _, c := range []*cobra.Command{adminAssessmentsCreateCmd, adminAssessmentsUpdateCmd} {
		c.Flags().StringVarP(&adminDraftFile, "file", "f", "", "YAML draft to read (- for stdin)")
		_ = c.MarkFlagRequired("file")
	}
	adminAssessmentsDeleteCmd.Flags().BoolVarP(&adminDeleteYes, "yes", "y", false, "do not ask for confirmation")
	adminLanguagesAddCmd.Flags().StringVar(&adminDescription, "description", "", "language description")
	adminSubtopicsAddCmd.Flags().StringVar(&adminDescription, "description", "", "subtopic description")
	adminSubtopicsCmd.Flags().IntVar(&adminLanguage, "language", 0, "only subtopics of this language id")
}

func runAdminOverview(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	o, err := admin.LoadOverview(cmd.Context(), d.api)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printHeading(out, "Administration")
	fmt.Fprintf(out, "  Users:       %d (%d admin)\n", o.TotalUsers, o.Admins)
	fmt.Fprintf(out, "  Assessments: %d (%d published)\n", o.TotalAssessments, o.PublishedAssessments)
	return nil
}

func runAdminAssessmentsList(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	list, err := d.api.ListAssessments(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No assessments yet. Create one with 'skillcheck admin assessments create --file draft.yaml'.")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		published := "no"
		if a.IsPublished {
			published = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(a.ID),
			a.Title,
			a.LanguageName,
			strconv.Itoa(len(a.Questions)),
			published,
		})
	}
	printTable(out, []string{"ID", "Title", "Language", "Questions", "Published"}, rows)
	return nil
}

func runAdminAssessmentsTemplate(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	draft := admin.NewDraft()
	if len(args) == 1 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := d.api.GetAssessment(cmd.Context(), id)
		if err != nil {
			return err
		}
		draft = admin.FromAssessment(a)
	}
	data, err := draft.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// readDraft loads the --file draft and validates it.
func readDraft(cmd *cobra.Command) (*admin.Draft, error) {
	var r io.Reader
	if adminDraftFile == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(adminDraftFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open draft")
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	d, err := admin.LoadDraft(r)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, draftError(err)
	}
	return d, nil
}

// draftError lists every field problem of a draft.
func draftError(err error) error {
	var fe admin.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	lines := make([]string, 0, len(fe)+1)
	lines = append(lines, "the draft is not valid:")
	for _, e := range fe {
		lines = append(lines, "  "+e.Error())
	}
	return errors.New(strings.Join(lines, "\n"))
}

func runAdminAssessmentsCreate(cmd *cobra.Command, args []string, d *deps) error {
	return saveDraft(cmd, d, 0)
}

func runAdminAssessmentsUpdate(cmd *cobra.Command, args []string, d *deps) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return saveDraft(cmd, d, id)
}

func saveDraft(cmd *cobra.Command, d *deps, id int) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	draft, err := readDraft(cmd)
	if err != nil {
		return err
	}
	a, err := admin.Save(cmd.Context(), d.api, id, draft)
	if err != nil {
		return draftError(err)
	}
	verb := "Created"
	if id != 0 {
		verb = "Updated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s assessment %d: %s\n", verb, a.ID, a.Title)
	return nil
}

func publishRunner(published bool) func(*cobra.Command, []string, *deps) error {
	return func(cmd *cobra.Command, args []string, d *deps) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := d.requireAdmin(); err != nil {
			return err
		}
		a, err := d.api.SetPublished(cmd.Context(), id, published)
		if err != nil {
			return err
		}
		state := "unpublished"
		if a.IsPublished {
			state = "published"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assessment %d is now %s.\n", a.ID, state)
		return nil
	}
}

func runAdminAssessmentsDelete(cmd *cobra.Command, args []string, d *deps) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	if !adminDeleteYes {
		ok, err := newPrompter(cmd).confirm(fmt.Sprintf("Delete assessment %d and every attempt of it?", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
			return nil
		}
	}
	if err := d.api.DeleteAssessment(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted assessment %d.\n", id)
	return nil
}

func runAdminUsersList(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	users, err := d.api.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.Itoa(u.ID), u.DisplayName(), u.Email, string(u.EffectiveRole())})
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Email", "Role"}, rows)
	return nil
}

func runAdminUsersRole(cmd *cobra.Command, args []string, d *deps) error {
	me, err := d.requireAdmin()
	if err != nil {
		return err
	}
	userID, err := strconv.Atoi(args[0])
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id: %q", args[0])
	}
	role := model.Role(strings.ToLower(args[1]))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: expected admin or user", args[1])
	}
	if userID == me.ID {
		return fmt.Errorf("you cannot change your own role")
	}
	u, err := d.api.SetUserRole(cmd.Context(), userID, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", u.DisplayName(), u.EffectiveRole())
	return nil
}

func runAdminLanguagesList(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	langs, err := d.api.ListLanguages(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(langs))
	for _, l := range langs {
		rows = append(rows, []string{strconv.Itoa(l.ID), l.Name, l.Description})
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Description"}, rows)
	return nil
}

func runAdminLanguagesAdd(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	l, err := d.api.CreateLanguage(cmd.Context(), model.Language{
		Name:        strings.TrimSpace(args[0]),
		Description: adminDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added language %d: %s\n", l.ID, l.Name)
	return nil
}

func runAdminSubtopicsList(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	subs, err := d.api.ListSubtopics(cmd.Context(), adminLanguage)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{strconv.Itoa(s.ID), strconv.Itoa(s.Language), s.Name, s.Description})
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "Language", "Name", "Description"}, rows)
	return nil
}

func runAdminSubtopicsAdd(cmd *cobra.Command, args []string, d *deps) error {
	if _, err := d.requireAdmin(); err != nil {
		return err
	}
	langID, err := strconv.Atoi(args[0])
	if err != nil || langID <= 0 {
		return fmt.Errorf("invalid language id: %q", args[0])
	}
	s, err := d.api.CreateSubtopic(cmd.Context(), model.Subtopic{
		Name:        strings.TrimSpace(args[1]),
		Description: adminDescription,
		Language:    langID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added subtopic %d: %s\n", s.ID, s.Name)
	return nil
}
