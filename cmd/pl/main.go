package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"postline/internal/app"
	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/domain"
	"postline/internal/migrate"
	"postline/internal/progress"
	"postline/internal/repo"
	"postline/internal/server"
	"postline/internal/session"
	"postline/internal/validate"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Postline CLI",
	Long: `Postline drafts and publishes foreign-employment job postings.
Core concepts:
- Workspace: your .postline directory with the database; agency configs are stored in the DB and imported explicitly.
- Draft: one posting in progress, either the eight-step single flow or the one-screen bulk flow.
- Steps: posting details -> contract -> positions -> tags -> expenses -> cutout -> interview -> review; every edit saves, progress is recomputed from content.
- Publish: the full draft re-validates; on success it becomes an immutable posting.
- Event log: diary of changes, view with 'pl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("POSTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("agency", "", "agency id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("agency", rootCmd.PersistentFlags().Lookup("agency"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(positionCmd())
	rootCmd.AddCommand(expenseCmd())
	rootCmd.AddCommand(interviewCmd())
	rootCmd.AddCommand(cutoutCmd())
	rootCmd.AddCommand(bulkCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var agencyID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agencyID == "" {
				return fmt.Errorf("--agency required")
			}
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(agencyID)), 0o644); err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertAgencyConfig(ctx, agencyID, config.Default(agencyID)); err != nil {
					return err
				}
				fmt.Printf("Initialized workspace for agency %s (%s)\n", agencyID, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agencyID, "agency", "", "agency id")
	_ = cmd.MarkFlagRequired("agency")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage agency config"}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored agency config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				return printJSONOrTable(cfg)
			})
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a config file into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				agencyID := viper.GetString("agency")
				if agencyID == "" {
					agencyID = cfg.Agency.ID
				}
				if agencyID == "" {
					return fmt.Errorf("agency id missing; set agency.id in the file or use --agency")
				}
				if err := r.UpsertAgencyConfig(ctx, agencyID, cfg); err != nil {
					return err
				}
				fmt.Printf("Imported config for agency %s\n", agencyID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config yaml path")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				counts, err := r.CountDraftsByKind(ctx, agencyID)
				if err != nil {
					return err
				}
				version, err := migrate.Version(r.DB)
				if err != nil {
					return err
				}
				out := map[string]any{
					"agency_id":      agencyID,
					"agency_name":    cfg.Agency.Name,
					"draft_counts":   counts,
					"schema_version": version,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Agency: %s", agencyID)
				if cfg.Agency.Name != "" {
					fmt.Printf(" (%s)", cfg.Agency.Name)
				}
				fmt.Println()
				fmt.Printf("Schema: v%d\n", version)
				fmt.Println("Drafts:")
				for kind, c := range counts {
					fmt.Printf("  %s: %d\n", kind, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func draftCmd() *cobra.Command {
	draft := &cobra.Command{
		Use:   "draft",
		Short: "Manage posting drafts",
		Long:  "Drafts accumulate posting content step by step. Progress is recomputed from what is actually filled in, never from where you left off.",
	}
	draft.AddCommand(draftCreateCmd())
	draft.AddCommand(draftListCmd())
	draft.AddCommand(draftShowCmd())
	draft.AddCommand(draftDeleteCmd())
	draft.AddCommand(draftProgressCmd())
	draft.AddCommand(draftValidateCmd())
	draft.AddCommand(draftSetPostingCmd())
	draft.AddCommand(draftSetContractCmd())
	draft.AddCommand(draftSetTagsCmd())
	draft.AddCommand(draftReviewCmd())
	draft.AddCommand(draftPublishCmd())
	draft.AddCommand(draftExpandCmd())
	return draft
}

func draftCreateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			flow := domain.Flow(kind)
			if flow != domain.FlowSingle && flow != domain.FlowBulk {
				return fmt.Errorf("invalid --kind %q (single or bulk)", kind)
			}
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				c := session.New(ctx, sessionConfig(r, agencyID, cfg, nil))
				if err := c.Select(flow); err != nil {
					return err
				}
				if err := c.SaveAndExit(ctx); err != nil {
					return err
				}
				d := c.Snapshot()
				fmt.Printf("Created %s draft %s\n", kind, d.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "single", "draft kind (single or bulk)")
	return cmd
}

func draftListCmd() *cobra.Command {
	var kind string
	var partialOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				filters := repo.DraftFilters{AgencyID: agencyID, Kind: kind}
				if partialOnly {
					v := true
					filters.Partial = &v
				}
				items, err := r.ListDrafts(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Title", "Country", "Progress", "State", "Updated"})
				for _, d := range items {
					res := progress.Evaluate(d)
					title := d.Posting.Title
					if d.Kind == domain.FlowBulk && d.Bulk != nil {
						title = d.Bulk.Title
					}
					tw.AppendRow(table.Row{
						d.ID, string(d.Kind), title, d.Posting.Country,
						fmt.Sprintf("%d/%d", res.CompletedCount, progress.TotalSteps),
						draftState(d, res), d.UpdatedAt,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind filter (single or bulk)")
	cmd.Flags().BoolVar(&partialOnly, "partial", false, "only partial drafts")
	return cmd
}

func draftState(d domain.Draft, res progress.Result) string {
	switch {
	case d.Published:
		return "published"
	case res.ReadyToPublish:
		return "ready"
	case d.IsPartial:
		return "partial"
	default:
		return "draft"
	}
}

func draftShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := r.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func draftDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <draft-id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				return r.DeleteDraft(ctx, agencyID, viper.GetString("actor-id"), args[0])
			})
		},
	}
	return cmd
}

func draftProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <draft-id>",
		Short: "Show recomputed progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := r.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				res := progress.Evaluate(d)
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Completed: %d/%d\n", res.CompletedCount, progress.TotalSteps)
				fmt.Printf("Current step: %d (%s)\n", res.CurrentStep, validate.Steps[res.CurrentStep-1].Name)
				fmt.Printf("Ready to publish: %v\n", res.ReadyToPublish)
				return nil
			})
		},
	}
	return cmd
}

func draftValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <draft-id>",
		Short: "Validate all steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := r.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				if d.Kind == domain.FlowBulk {
					errs := validate.CheckBulk(d)
					if len(errs) == 0 {
						fmt.Println("ok")
						return nil
					}
					return printJSONOrTable(errs)
				}
				stepErrs := validate.CheckAll(d)
				if len(stepErrs) == 0 {
					fmt.Println("ok")
					return nil
				}
				named := map[string]validate.Errors{}
				for step, errs := range stepErrs {
					named[validate.Steps[step].Name] = errs
				}
				return printJSONOrTable(named)
			})
		},
	}
	return cmd
}

func draftSetPostingCmd() *cobra.Command {
	var p domain.PostingDetails
	var calendar string
	cmd := &cobra.Command{
		Use:   "set-posting <draft-id>",
		Short: "Set posting details",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("draft id required")
			}
			cal := domain.Calendar(calendar)
			if cal != domain.CalendarAD && cal != domain.CalendarBS {
				return fmt.Errorf("invalid --calendar %q (ad or bs)", calendar)
			}
			p.ApprovalDate.Active = cal
			p.PostingDate.Active = cal
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ApplyPosting(p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Title, "title", "", "posting title")
	cmd.Flags().StringVar(&p.Country, "country", "", "destination country")
	cmd.Flags().StringVar(&p.City, "city", "", "destination city")
	cmd.Flags().StringVar(&p.LicenseNumber, "license", "", "agency license number")
	cmd.Flags().StringVar(&p.ChalaniNumber, "chalani", "", "chalani reference number")
	cmd.Flags().StringVar(&p.ApprovalDate.AD, "approval-ad", "", "approval date (AD)")
	cmd.Flags().StringVar(&p.ApprovalDate.BS, "approval-bs", "", "approval date (BS)")
	cmd.Flags().StringVar(&p.PostingDate.AD, "posting-ad", "", "posting date (AD)")
	cmd.Flags().StringVar(&p.PostingDate.BS, "posting-bs", "", "posting date (BS)")
	cmd.Flags().StringVar(&calendar, "calendar", "ad", "active calendar for dates (ad or bs)")
	cmd.Flags().StringVar(&p.AnnouncementType, "announcement", "", "announcement type")
	cmd.Flags().StringVar(&p.Notes, "notes", "", "notes")
	return cmd
}

func draftSetContractCmd() *cobra.Command {
	var t domain.ContractTerms
	var periodYears, hoursPerDay, daysPerWeek, weeklyOff, annualLeave int
	var overtime, food, accommodation, transport string
	cmd := &cobra.Command{
		Use:   "set-contract <draft-id>",
		Short: "Set contract terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("period-years") {
				t.PeriodYears = &periodYears
			}
			if cmd.Flags().Changed("hours-per-day") {
				t.HoursPerDay = &hoursPerDay
			}
			if cmd.Flags().Changed("days-per-week") {
				t.DaysPerWeek = &daysPerWeek
			}
			if cmd.Flags().Changed("weekly-off-days") {
				t.WeeklyOffDays = &weeklyOff
			}
			if cmd.Flags().Changed("annual-leave-days") {
				t.AnnualLeaveDays = &annualLeave
			}
			t.Overtime = domain.OvertimePolicy(overtime)
			t.Food = domain.Provision(food)
			t.Accommodation = domain.Provision(accommodation)
			t.Transport = domain.Provision(transport)
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ApplyContract(t)
			})
		},
	}
	cmd.Flags().IntVar(&periodYears, "period-years", 0, "contract period in years")
	cmd.Flags().BoolVar(&t.Renewable, "renewable", false, "contract renewable")
	cmd.Flags().IntVar(&hoursPerDay, "hours-per-day", 0, "working hours per day")
	cmd.Flags().IntVar(&daysPerWeek, "days-per-week", 0, "working days per week")
	cmd.Flags().StringVar(&overtime, "overtime", "", "overtime policy (paid, unpaid, as_per_law)")
	cmd.Flags().IntVar(&weeklyOff, "weekly-off-days", 0, "weekly off days")
	cmd.Flags().IntVar(&annualLeave, "annual-leave-days", 0, "annual leave days")
	cmd.Flags().StringVar(&food, "food", "", "food provision (free, paid, not_provided)")
	cmd.Flags().StringVar(&accommodation, "accommodation", "", "accommodation provision")
	cmd.Flags().StringVar(&transport, "transport", "", "transport provision")
	return cmd
}

func draftSetTagsCmd() *cobra.Command {
	var t domain.TagRequirements
	var minYears, preferredYears int
	cmd := &cobra.Command{
		Use:   "set-tags <draft-id>",
		Short: "Set tag requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-years") {
				t.Experience.MinYears = &minYears
			}
			if cmd.Flags().Changed("preferred-years") {
				t.Experience.PreferredYears = &preferredYears
			}
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ApplyTags(t)
			})
		},
	}
	cmd.Flags().StringArrayVar(&t.Skills, "skill", []string{}, "required skill (repeatable)")
	cmd.Flags().StringArrayVar(&t.Education, "education", []string{}, "education requirement (repeatable)")
	cmd.Flags().IntVar(&minYears, "min-years", 0, "minimum experience years")
	cmd.Flags().IntVar(&preferredYears, "preferred-years", 0, "preferred experience years")
	cmd.Flags().StringArrayVar(&t.Experience.Domains, "domain", []string{}, "experience domain (repeatable)")
	cmd.Flags().StringArrayVar(&t.TitleIDs, "title-id", []string{}, "canonical title id (repeatable, pairs with --title-name)")
	cmd.Flags().StringArrayVar(&t.TitleNames, "title-name", []string{}, "canonical title name (repeatable)")
	return cmd
}

func draftReviewCmd() *cobra.Command {
	var reviewDone, submitDone bool
	cmd := &cobra.Command{
		Use:   "review <draft-id>",
		Short: "Set review and submit markers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				if cmd.Flags().Changed("review-complete") {
					if err := c.MarkReview(reviewDone); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("submit-complete") {
					if err := c.MarkSubmit(submitDone); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reviewDone, "review-complete", false, "mark the review checklist complete")
	cmd.Flags().BoolVar(&submitDone, "submit-complete", false, "mark the final submission confirmed")
	return cmd
}

func draftPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <draft-id>",
		Short: "Publish a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				d, err := r.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				c := session.New(ctx, sessionConfig(r, agencyID, cfg, &d))
				res, err := c.Publish(ctx)
				if err != nil {
					return err
				}
				if !res.OK {
					fmt.Printf("Publish blocked: %d fields failed, first failing step is %s\n",
						res.ErrorCount, validate.Steps[res.FirstFailing].Name)
					for step, errs := range res.StepErrors {
						for field, msg := range errs {
							fmt.Printf("  %s: %s: %s\n", validate.Steps[step].Name, field, msg)
						}
					}
					return fmt.Errorf("draft is not ready to publish")
				}
				p, err := r.GetPostingByDraft(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Published %q as posting %s\n", p.Title, p.ID)
				return nil
			})
		},
	}
	return cmd
}

func draftExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <draft-id>",
		Short: "Expand a bulk draft into a single draft",
		Long:  "Seeds a new single draft from the bulk draft's first entry. The remaining entries are dropped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				src, err := r.GetDraft(ctx, args[0])
				if err != nil {
					return err
				}
				if src.Kind != domain.FlowBulk {
					return fmt.Errorf("draft %s is not a bulk draft", args[0])
				}
				scfg := sessionConfig(r, agencyID, cfg, &src)
				scfg.ExpandBulk = true
				c := session.New(ctx, scfg)
				if err := c.SaveAndExit(ctx); err != nil {
					return err
				}
				d := c.Snapshot()
				fmt.Printf("Created single draft %s from bulk draft %s\n", d.ID, src.ID)
				return nil
			})
		},
	}
	return cmd
}

func positionCmd() *cobra.Command {
	pos := &cobra.Command{Use: "position", Short: "Manage draft positions"}
	pos.AddCommand(positionAddCmd())
	pos.AddCommand(positionUpdateCmd())
	pos.AddCommand(positionRemoveCmd())
	return pos
}

func positionFlags(cmd *cobra.Command, p *domain.Position, male, female *int, salary *float64) {
	cmd.Flags().StringVar(&p.Title, "title", "", "position title")
	cmd.Flags().IntVar(male, "male", 0, "male vacancies")
	cmd.Flags().IntVar(female, "female", 0, "female vacancies")
	cmd.Flags().Float64Var(salary, "salary", 0, "monthly salary")
	cmd.Flags().StringVar(&p.Currency, "currency", "", "salary currency (defaults from config)")
	cmd.Flags().StringVar(&p.Notes, "notes", "", "notes")
}

func positionFromFlags(cmd *cobra.Command, p domain.Position, male, female int, salary float64) domain.Position {
	if cmd.Flags().Changed("male") {
		p.MaleVacancies = &male
	}
	if cmd.Flags().Changed("female") {
		p.FemaleVacancies = &female
	}
	if cmd.Flags().Changed("salary") {
		p.MonthlySalary = &salary
	}
	return p
}

func positionAddCmd() *cobra.Command {
	var p domain.Position
	var male, female int
	var salary float64
	cmd := &cobra.Command{
		Use:   "add <draft-id>",
		Short: "Add a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				id, err := c.AddPosition(positionFromFlags(cmd, p, male, female, salary))
				if err != nil {
					return err
				}
				fmt.Printf("Added position %d\n", id)
				return nil
			})
		},
	}
	positionFlags(cmd, &p, &male, &female, &salary)
	return cmd
}

func positionUpdateCmd() *cobra.Command {
	var p domain.Position
	var male, female int
	var salary float64
	var localID int
	cmd := &cobra.Command{
		Use:   "update <draft-id>",
		Short: "Update a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.UpdatePosition(localID, positionFromFlags(cmd, p, male, female, salary))
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "position local id")
	_ = cmd.MarkFlagRequired("id")
	positionFlags(cmd, &p, &male, &female, &salary)
	return cmd
}

func positionRemoveCmd() *cobra.Command {
	var localID int
	cmd := &cobra.Command{
		Use:   "remove <draft-id>",
		Short: "Remove a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.RemovePosition(localID)
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "position local id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func expenseCmd() *cobra.Command {
	exp := &cobra.Command{
		Use:   "expense",
		Short: "Manage draft expenses",
		Long:  "Expense entries record who pays what. Marking an entry free clears its amount atomically.",
	}
	exp.AddCommand(expenseAddCmd())
	exp.AddCommand(expenseUpdateCmd())
	exp.AddCommand(expenseRemoveCmd())
	return exp
}

func expenseFlags(cmd *cobra.Command, e *domain.Expense, amount *float64) {
	cmd.Flags().StringVar((*string)(&e.Type), "type", "", "expense type")
	cmd.Flags().StringVar((*string)(&e.Payer), "payer", "", "payer (company, worker, shared)")
	cmd.Flags().BoolVar(&e.IsFree, "free", false, "expense is free for the worker")
	cmd.Flags().Float64Var(amount, "amount", 0, "amount")
	cmd.Flags().StringVar(&e.Currency, "currency", "", "currency (defaults from config)")
	cmd.Flags().StringVar(&e.Notes, "notes", "", "notes")
}

func expenseFromFlags(cmd *cobra.Command, e domain.Expense, amount float64) domain.Expense {
	if cmd.Flags().Changed("amount") {
		e.Amount = &amount
	}
	return e
}

func expenseAddCmd() *cobra.Command {
	var e domain.Expense
	var amount float64
	cmd := &cobra.Command{
		Use:   "add <draft-id>",
		Short: "Add an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				id, err := c.AddExpense(expenseFromFlags(cmd, e, amount))
				if err != nil {
					return err
				}
				fmt.Printf("Added expense %d\n", id)
				return nil
			})
		},
	}
	expenseFlags(cmd, &e, &amount)
	return cmd
}

func expenseUpdateCmd() *cobra.Command {
	var e domain.Expense
	var amount float64
	var localID int
	cmd := &cobra.Command{
		Use:   "update <draft-id>",
		Short: "Update an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.UpdateExpense(localID, expenseFromFlags(cmd, e, amount))
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "expense local id")
	_ = cmd.MarkFlagRequired("id")
	expenseFlags(cmd, &e, &amount)
	return cmd
}

func expenseRemoveCmd() *cobra.Command {
	var localID int
	cmd := &cobra.Command{
		Use:   "remove <draft-id>",
		Short: "Remove an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.RemoveExpense(localID)
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "expense local id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func interviewCmd() *cobra.Command {
	iv := &cobra.Command{
		Use:   "interview",
		Short: "Manage the optional interview step",
	}
	iv.AddCommand(interviewSetCmd())
	iv.AddCommand(interviewClearCmd())
	iv.AddCommand(interviewExpenseAddCmd())
	return iv
}

func interviewSetCmd() *cobra.Command {
	var in domain.Interview
	var calendar string
	cmd := &cobra.Command{
		Use:   "set <draft-id>",
		Short: "Set interview details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal := domain.Calendar(calendar)
			if cal != domain.CalendarAD && cal != domain.CalendarBS {
				return fmt.Errorf("invalid --calendar %q (ad or bs)", calendar)
			}
			in.Date.Active = cal
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ApplyInterview(in)
			})
		},
	}
	cmd.Flags().StringVar(&in.Date.AD, "date-ad", "", "interview date (AD)")
	cmd.Flags().StringVar(&in.Date.BS, "date-bs", "", "interview date (BS)")
	cmd.Flags().StringVar(&calendar, "calendar", "ad", "active calendar (ad or bs)")
	cmd.Flags().StringVar(&in.Time, "time", "", "interview time, e.g. 10:30 AM or 14:00")
	cmd.Flags().StringVar(&in.Location, "location", "", "interview location")
	cmd.Flags().StringVar(&in.ContactPerson, "contact", "", "contact person")
	cmd.Flags().StringArrayVar(&in.RequiredDocuments, "document", []string{}, "required document (repeatable)")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "notes")
	return cmd
}

func interviewClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <draft-id>",
		Short: "Clear the interview step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ClearInterview()
			})
		},
	}
	return cmd
}

func interviewExpenseAddCmd() *cobra.Command {
	var e domain.Expense
	var amount float64
	cmd := &cobra.Command{
		Use:   "add-expense <draft-id>",
		Short: "Add an interview expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				id, err := c.AddInterviewExpense(expenseFromFlags(cmd, e, amount))
				if err != nil {
					return err
				}
				fmt.Printf("Added interview expense %d\n", id)
				return nil
			})
		},
	}
	expenseFlags(cmd, &e, &amount)
	return cmd
}

func cutoutCmd() *cobra.Command {
	cut := &cobra.Command{
		Use:   "cutout",
		Short: "Manage the newspaper cutout image",
	}
	cut.AddCommand(cutoutAttachCmd())
	cut.AddCommand(cutoutUploadedCmd())
	cut.AddCommand(cutoutClearCmd())
	return cut
}

func cutoutAttachCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "attach <draft-id>",
		Short: "Attach a cutout image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			info, err := os.Stat(file)
			if err != nil {
				return err
			}
			mimeType := mime.TypeByExtension(filepath.Ext(file))
			if i := strings.Index(mimeType, ";"); i >= 0 {
				mimeType = mimeType[:i]
			}
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.AttachCutout(filepath.Base(file), mimeType, file, info.Size())
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "image file path")
	return cmd
}

func cutoutUploadedCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "uploaded <draft-id>",
		Short: "Mark the cutout uploaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("--url required")
			}
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.MarkCutoutUploaded(url)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "uploaded image URL")
	return cmd
}

func cutoutClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <draft-id>",
		Short: "Clear the cutout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.ClearCutout()
			})
		},
	}
	return cmd
}

func bulkCmd() *cobra.Command {
	bulk := &cobra.Command{
		Use:   "bulk",
		Short: "Manage bulk draft content",
		Long:  "The bulk flow collects a shared title plus per-country entries on a single screen.",
	}
	bulk.AddCommand(bulkSetCmd())
	bulk.AddCommand(bulkEntryAddCmd())
	bulk.AddCommand(bulkEntryUpdateCmd())
	bulk.AddCommand(bulkEntryRemoveCmd())
	return bulk
}

func bulkSetCmd() *cobra.Command {
	var title, company string
	cmd := &cobra.Command{
		Use:   "set <draft-id>",
		Short: "Set bulk title and company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.SetBulkInfo(title, company)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "bulk posting title")
	cmd.Flags().StringVar(&company, "company", "", "employer company")
	return cmd
}

func bulkEntryFlags(cmd *cobra.Command, e *domain.BulkEntry, jobs *int) {
	cmd.Flags().StringVar(&e.Country, "country", "", "destination country")
	cmd.Flags().IntVar(jobs, "jobs", 0, "job count")
	cmd.Flags().StringVar(&e.Position, "position", "", "position title")
}

func bulkEntryFromFlags(cmd *cobra.Command, e domain.BulkEntry, jobs int) domain.BulkEntry {
	if cmd.Flags().Changed("jobs") {
		e.JobCount = &jobs
	}
	return e
}

func bulkEntryAddCmd() *cobra.Command {
	var e domain.BulkEntry
	var jobs int
	cmd := &cobra.Command{
		Use:   "add-entry <draft-id>",
		Short: "Add a bulk entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				id, err := c.AddBulkEntry(bulkEntryFromFlags(cmd, e, jobs))
				if err != nil {
					return err
				}
				fmt.Printf("Added entry %d\n", id)
				return nil
			})
		},
	}
	bulkEntryFlags(cmd, &e, &jobs)
	return cmd
}

func bulkEntryUpdateCmd() *cobra.Command {
	var e domain.BulkEntry
	var jobs, localID int
	cmd := &cobra.Command{
		Use:   "update-entry <draft-id>",
		Short: "Update a bulk entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.UpdateBulkEntry(localID, bulkEntryFromFlags(cmd, e, jobs))
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "entry local id")
	_ = cmd.MarkFlagRequired("id")
	bulkEntryFlags(cmd, &e, &jobs)
	return cmd
}

func bulkEntryRemoveCmd() *cobra.Command {
	var localID int
	cmd := &cobra.Command{
		Use:   "remove-entry <draft-id>",
		Short: "Remove a bulk entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), args[0], func(c *session.Controller) error {
				return c.RemoveBulkEntry(localID)
			})
		},
	}
	cmd.Flags().IntVar(&localID, "id", 0, "entry local id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: draft edits, publishes, deletions.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgency(cmd.Context(), func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
				events, err := r.LatestEvents(ctx, n, agencyID, evtType, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.New(conn)
			agencyID, cfg, err := app.ResolveAgencyAndConfig(cmd.Context(), workspace, viper.GetString("agency"), r)
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("POSTLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("POSTLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Repo: r, AgencyID: agencyID, Catalog: cfg, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Postline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.New(conn))
}

func withAgency(ctx context.Context, fn func(context.Context, repo.Repo, string, *config.Config) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		workspace := viper.GetString("workspace")
		agencyID, cfg, err := app.ResolveAgencyAndConfig(ctx, workspace, viper.GetString("agency"), r)
		if err != nil {
			return err
		}
		return fn(ctx, r, agencyID, cfg)
	})
}

// withSession loads a draft, applies one edit through a session controller
// and saves it back.
func withSession(ctx context.Context, draftID string, fn func(*session.Controller) error) error {
	return withAgency(ctx, func(ctx context.Context, r repo.Repo, agencyID string, cfg *config.Config) error {
		d, err := r.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		c := session.New(ctx, sessionConfig(r, agencyID, cfg, &d))
		if err := fn(c); err != nil {
			return err
		}
		return c.Save(ctx)
	})
}

func sessionConfig(r repo.Repo, agencyID string, cfg *config.Config, source *domain.Draft) session.Config {
	scfg := session.Config{
		Store:           repo.DraftStore{Repo: r, AgencyID: agencyID, ActorID: viper.GetString("actor-id")},
		Countries:       config.CountrySource{Cfg: cfg},
		DefaultCurrency: cfg.Defaults.Currency,
		MaxCutoutBytes:  cfg.Cutout.MaxSizeBytes,
		CutoutMimeTypes: cfg.Cutout.MimeTypes,
		Source:          source,
	}
	if source != nil {
		scfg.ResumeHint = source.StepHint
	}
	return scfg
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
