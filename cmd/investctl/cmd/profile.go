package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exonvc/invest/internal/identity"
)

var profilePatch identity.ProfilePatch

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the cached profile",
	Run: func(cmd *cobra.Command, args []string) {
		snap := current.manager.Snapshot()
		if snap.User.Empty() {
			fmt.Println("Not logged in.")
			return
		}
		u := snap.User
		fmt.Printf("#%d %s\nphone: %s\nemail: %s\nnational code: %s\nwallet: %.2f\nverified: %t\n",
			u.ID, u.FullName, u.Phone, u.Email, u.NationalCode, u.WalletBalance, u.IsVerified)
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		if profilePatch.Empty() {
			return fmt.Errorf("nothing to update, pass at least one field flag")
		}
		res := current.manager.UpdateProfile(cmd.Context(), profilePatch)
		if !res.OK {
			return fmt.Errorf("%s", res.Err)
		}
		fmt.Println("Profile updated.")
		return nil
	},
}

func init() {
	profileUpdateCmd.Flags().StringVar(&profilePatch.FullName, "full-name", "", "full name")
	profileUpdateCmd.Flags().StringVar(&profilePatch.Email, "email", "", "email address")
	profileUpdateCmd.Flags().StringVar(&profilePatch.NationalCode, "national-id", "", "national id code")
	profileUpdateCmd.Flags().StringVar(&profilePatch.Address, "address", "", "postal address")

	profileCmd.AddCommand(profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}
