package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exonvc/invest/internal/session"
)

var (
	loginPhone string
	loginOTP   string

	regPhone      string
	regOTP        string
	regFirstName  string
	regLastName   string
	regEmail      string
	regNationalID string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a one-time SMS code",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		otp := loginOTP
		if otp == "" {
			res := current.manager.RequestOTP(ctx, loginPhone)
			if !res.OK {
				return fmt.Errorf("%s", res.Err)
			}
			fmt.Println(res.Message)
			var err error
			if otp, err = promptLine("Code: "); err != nil {
				return err
			}
		}

		res := current.manager.Login(ctx, loginPhone, otp)
		if !res.OK {
			return fmt.Errorf("%s", res.Err)
		}
		fmt.Printf("Logged in as %s (%s)\n", res.User.FullName, res.User.Phone)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		otp := regOTP
		if otp == "" {
			res := current.manager.RequestOTP(ctx, regPhone)
			if !res.OK {
				return fmt.Errorf("%s", res.Err)
			}
			fmt.Println(res.Message)
			var err error
			if otp, err = promptLine("Code: "); err != nil {
				return err
			}
		}

		res := current.manager.Register(ctx, session.Registration{
			Phone:      regPhone,
			OTP:        otp,
			FirstName:  regFirstName,
			LastName:   regLastName,
			Email:      regEmail,
			NationalID: regNationalID,
		})
		if !res.OK {
			return fmt.Errorf("%s", res.Err)
		}
		fmt.Printf("Registered %s (%s)\n", res.User.FullName, res.User.Phone)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Destroy the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		current.manager.Logout(cmd.Context())
		fmt.Println("Logged out.")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session after revalidating it",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := current.manager.Reconcile(cmd.Context())
		snap := current.manager.Snapshot()
		fmt.Println("status:", status)
		if status == session.StatusAuthenticated {
			fmt.Printf("user: #%d %s <%s> phone=%s\n", snap.User.ID, snap.User.FullName, snap.User.Email, snap.User.Phone)
		}
		return nil
	},
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "phone number")
	loginCmd.Flags().StringVar(&loginOTP, "otp", "", "one-time code (prompted when omitted)")
	_ = loginCmd.MarkFlagRequired("phone")

	registerCmd.Flags().StringVar(&regPhone, "phone", "", "phone number")
	registerCmd.Flags().StringVar(&regOTP, "otp", "", "one-time code (prompted when omitted)")
	registerCmd.Flags().StringVar(&regFirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&regLastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "email address")
	registerCmd.Flags().StringVar(&regNationalID, "national-id", "", "national id code")
	_ = registerCmd.MarkFlagRequired("phone")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
