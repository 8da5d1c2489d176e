package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deudat/deudat/internal/app/board"
	"github.com/deudat/deudat/internal/domain"
)

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(productsCmd)
	productsCmd.AddCommand(productsAddCmd)
	productsCmd.AddCommand(productsPriceCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(debtsCmd)
	rootCmd.AddCommand(resetCmd)

	tapCmd.Flags().Int64("user", 0, "act on this user's board instead of your own")
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List board members",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		users, err := c.Users(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%4d  %s\n", u.ID, u.Name)
		}
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products and prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		products, err := c.Products(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range products {
			fmt.Printf("%4d  %-20s %8s\n", p.ID, p.Name, domain.FormatAmount(p.Price))
		}
		return nil
	},
}

var productsAddCmd = &cobra.Command{
	Use:   "add NAME PRICE",
	Short: "Add a product",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		p, err := c.CreateProduct(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("added %s (id %d) at %s\n", p.Name, p.ID, domain.FormatAmount(p.Price))
		return nil
	},
}

var productsPriceCmd = &cobra.Command{
	Use:   "price ID PRICE",
	Short: "Change a product's price",
	Long: `Change a product's price. Existing ledger entries are not repriced;
debts are always valued at the price in effect when the report is computed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[0])
		}
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		current, err := c.Products(cmd.Context())
		if err != nil {
			return err
		}
		name := ""
		for _, p := range current {
			if p.ID == id {
				name = p.Name
			}
		}
		if name == "" {
			return fmt.Errorf("no product with id %d", id)
		}

		p, err := c.UpdateProduct(cmd.Context(), id, name, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s now costs %s\n", p.Name, domain.FormatAmount(p.Price))
		return nil
	},
}

var tapCmd = &cobra.Command{
	Use:   "tap [+|-]PRODUCT_ID...",
	Short: "Record checkouts and returns",
	Long: `Record taps on the board, e.g. "deudat tap -- +3 +3 -5" checks out two
of product 3 and returns one of product 5 (the -- keeps returns from being
parsed as flags). A return is refused when the current count is already zero,
same as on the phone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()
		ctx := cmd.Context()

		userID, _ := cmd.Flags().GetInt64("user")
		if userID == 0 {
			u, err := c.CurrentUser(ctx)
			if err != nil {
				return err
			}
			userID = u.ID
		}

		b := board.NewCoordinator(c, userID, func(productID int64, dir domain.Direction, err error) {
			fmt.Printf("tap %s%d failed and was rolled back: %v\n", dir, productID, err)
		})
		if err := b.Refresh(ctx); err != nil {
			return err
		}

		for _, arg := range args {
			dir := domain.Increment
			raw := arg
			switch {
			case strings.HasPrefix(arg, "+"):
				raw = arg[1:]
			case strings.HasPrefix(arg, "-"):
				dir = domain.Decrement
				raw = arg[1:]
			}
			productID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tap %q", arg)
			}
			if dir == domain.Decrement {
				if !b.Decrement(ctx, productID) {
					fmt.Printf("-%d refused: nothing to return\n", productID)
				}
				continue
			}
			b.Increment(ctx, productID)
		}
		b.Wait()

		counts := b.Counts()
		ids := make([]int64, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Printf("%4d  x%d\n", id, counts[id])
		}
		return nil
	},
}

var debtsCmd = &cobra.Command{
	Use:   "debts",
	Short: "Show the debts board",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := c.DebtReport(cmd.Context())
		if err != nil {
			return err
		}
		for _, row := range report.Rows {
			fmt.Printf("%-20s %10s\n", row.UserName, row.Display)
		}
		fmt.Printf("%-20s %10s\n", "TOTAL", report.TotalDisplay)
		fmt.Printf("days since reset: %d\n", report.DaysSinceReset)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a new accounting epoch",
	Long: `Start a new accounting epoch. Every debt drops to zero; old entries
stay in the ledger but no longer count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		epoch, err := c.TriggerReset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("board reset, epoch %d started\n", epoch.Seq)
		return nil
	},
}
