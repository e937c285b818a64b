package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/exonvc/invest/internal/api"
	"github.com/exonvc/invest/internal/invest"
)

// remoteErr keeps the backend's detail message when there is one and passes
// client-side failures through untouched.
func remoteErr(err error) error {
	if errors.Is(err, invest.ErrNotLoggedIn) {
		return err
	}
	return fmt.Errorf("%s", api.Message(err))
}

var (
	investProjectID int64
	investAmount    float64
)

var projectsCmd = &cobra.Command{
	Use:   "projects [id]",
	Short: "List projects, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			project, err := current.invest.Project(ctx, id)
			if err != nil {
				return remoteErr(err)
			}
			fmt.Printf("#%d %s [%s/%s]\n%s\ntarget: %.0f raised: %.0f min: %.0f\n",
				project.ID, project.Title, project.Category, project.Status,
				project.ShortDescription, project.TargetAmount, project.RaisedAmount, project.MinInvestment)
			return nil
		}

		projects, err := current.invest.Projects(ctx)
		if err != nil {
			return remoteErr(err)
		}
		for _, p := range projects {
			fmt.Printf("#%d\t%s\t%s\t%.0f/%.0f\n", p.ID, p.Title, p.Status, p.RaisedAmount, p.TargetAmount)
		}
		return nil
	},
}

var investCmd = &cobra.Command{
	Use:   "invest",
	Short: "Create an investment in a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		investment, err := current.invest.CreateInvestment(cmd.Context(), investProjectID, investAmount)
		if err != nil {
			return remoteErr(err)
		}
		fmt.Printf("Investment #%d created: %.0f in project #%d (%s)\n",
			investment.ID, investment.Amount, investment.ProjectID, investment.Status)
		return nil
	},
}

var investmentsCmd = &cobra.Command{
	Use:   "investments",
	Short: "List your investments",
	RunE: func(cmd *cobra.Command, args []string) error {
		investments, err := current.invest.UserInvestments(cmd.Context())
		if err != nil {
			return remoteErr(err)
		}
		if len(investments) == 0 {
			fmt.Println("No investments.")
			return nil
		}
		for _, inv := range investments {
			fmt.Printf("#%d\tproject #%d\t%.0f\t%s\n", inv.ID, inv.ProjectID, inv.Amount, inv.Status)
		}
		return nil
	},
}

func init() {
	investCmd.Flags().Int64Var(&investProjectID, "project", 0, "project id")
	investCmd.Flags().Float64Var(&investAmount, "amount", 0, "amount to invest")
	_ = investCmd.MarkFlagRequired("project")
	_ = investCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(projectsCmd, investCmd, investmentsCmd)
}
