package company

import (
	"fmt"
	"strconv"
	"time"

	"motium/cmd/client/cmd/types"
	"motium/internal/domain/company"

	"github.com/spf13/cobra"
)

// CompanyCmd - профессиональный аккаунт: сотрудники и лицензии. Работает только онлайн,
// ответы кешируются на время cache_ttl_seconds.
var CompanyCmd = &cobra.Command{
	Use:   "company",
	Short: "Профессиональный аккаунт компании",
}

var (
	companyName  string
	companySiret string
	billingEmail string
	shareTrips   bool
	licenseCount int
	assignLink   int
	asJSON       bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать профессиональный аккаунт",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		pa, err := app.CreateProAccount(ctx, company.CreateProAccountRequest{
			CompanyName:  companyName,
			Siret:        companySiret,
			BillingEmail: billingEmail,
		})
		if err != nil {
			return types.Hint(err)
		}
		fmt.Printf("%s аккаунт %q создан (id %d)\n", types.OK("✓"), pa.CompanyName, pa.ID)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Показать аккаунт и участников",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		pa, err := app.ProAccount(ctx)
		if err != nil {
			return types.Hint(err)
		}
		if asJSON {
			return types.PrintJSON(pa)
		}

		fmt.Println(types.Bold(pa.CompanyName))
		if pa.Siret != "" {
			fmt.Println("SIRET:", pa.Siret)
		}
		fmt.Println("Счета:", pa.BillingEmail)
		return nil
	},
}

var inviteCmd = &cobra.Command{
	Use:   "invite <email>",
	Short: "Пригласить сотрудника",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		inv, err := app.Invite(ctx, company.InviteRequest{Email: args[0], ShareTrips: shareTrips})
		if err != nil {
			return types.Hint(err)
		}
		fmt.Printf("%s приглашение для %s создано\n", types.OK("✓"), inv.Link.Email)
		fmt.Println("Передайте сотруднику токен (показывается один раз):")
		fmt.Println(types.Bold(inv.Token))
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <token>",
	Short: "Принять приглашение компании",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		link, err := app.AcceptInvitation(ctx, args[0])
		if err != nil {
			return types.Hint(err)
		}
		fmt.Printf("%s вы присоединились к %s\n", types.OK("✓"), link.CompanyName)
		return nil
	},
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Сотрудники компании",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		links, err := app.Links(ctx)
		if err != nil {
			return types.Hint(err)
		}
		return printLinks(links)
	},
}

var membershipsCmd = &cobra.Command{
	Use:   "memberships",
	Short: "Компании, к которым вы привязаны",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		links, err := app.Memberships(ctx)
		if err != nil {
			return types.Hint(err)
		}
		return printLinks(links)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <link-id>",
	Short: "Отозвать доступ сотрудника",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("неверный id: %s", args[0])
		}
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		if err := app.RevokeLink(ctx, id); err != nil {
			return types.Hint(err)
		}
		fmt.Println(types.OK("✓"), "Доступ отозван")
		return nil
	},
}

var tripsCmd = &cobra.Command{
	Use:   "trips <link-id>",
	Short: "Поездки сотрудника, открытые компании",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("неверный id: %s", args[0])
		}
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		trips, err := app.LinkedTrips(ctx, id)
		if err != nil {
			return types.Hint(err)
		}
		return types.PrintJSON(trips)
	},
}

var licensesCmd = &cobra.Command{
	Use:   "licenses",
	Short: "Лицензии компании",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		var licenses []company.License
		if licenseCount > 0 {
			licenses, err = app.AddLicenses(ctx, licenseCount)
			if err == nil {
				fmt.Printf("%s добавлено лицензий: %d\n", types.OK("✓"), len(licenses))
			}
		} else {
			licenses, err = app.Licenses(ctx)
		}
		if err != nil {
			return types.Hint(err)
		}
		if asJSON {
			return types.PrintJSON(licenses)
		}

		for _, l := range licenses {
			holder := "-"
			if l.LinkID != nil {
				holder = "связь " + strconv.Itoa(*l.LinkID)
			}
			fmt.Printf("%4d  %-9s  %s\n", l.ID, l.Status, holder)
		}
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <license-id>",
	Short: "Назначить лицензию сотруднику (--link) или снять (без --link)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("неверный id: %s", args[0])
		}
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		if assignLink > 0 {
			err = app.AssignLicense(ctx, id, assignLink)
		} else {
			err = app.UnassignLicense(ctx, id)
		}
		if err != nil {
			return types.Hint(err)
		}
		fmt.Println(types.OK("✓"), "Готово")
		return nil
	},
}

func printLinks(links []company.Link) error {
	if asJSON {
		return types.PrintJSON(links)
	}
	if len(links) == 0 {
		fmt.Println("Связей нет")
		return nil
	}
	for _, l := range links {
		status := string(l.Status)
		switch l.Status {
		case company.LinkActive:
			status = types.OK(status)
		case company.LinkPending:
			status = types.Warn(status)
		default:
			status = types.Fail(status)
		}
		name := l.Email
		if l.CompanyName != "" {
			name = l.CompanyName + " / " + l.Email
		}
		fmt.Printf("%4d  %-8s  %s  (с %s)\n", l.ID, status, name, l.InvitedAt.Local().Format(time.DateOnly))
	}
	return nil
}

func init() {
	createCmd.Flags().StringVar(&companyName, "name", "", "название компании")
	createCmd.Flags().StringVar(&companySiret, "siret", "", "SIRET, 14 цифр")
	createCmd.Flags().StringVar(&billingEmail, "billing-email", "", "email для счетов")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("billing-email")

	inviteCmd.Flags().BoolVar(&shareTrips, "share-trips", true, "сотрудник открывает компании поездки")
	licensesCmd.Flags().IntVar(&licenseCount, "add", 0, "докупить лицензии")
	assignCmd.Flags().IntVar(&assignLink, "link", 0, "id связи сотрудника")

	CompanyCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "вывод в формате JSON")
	CompanyCmd.AddCommand(createCmd, showCmd, inviteCmd, acceptCmd, linksCmd, membershipsCmd,
		revokeCmd, tripsCmd, licensesCmd, assignCmd)
}
