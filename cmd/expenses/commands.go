package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/identity"
	"expenses/internal/store"
)

const dateLayout = "2006-01-02"

var errNotSignedIn = errors.New("not signed in: set ID_TOKEN")

type client struct {
	store   *store.Store
	session *identity.Session
	out     io.Writer
	errOut  io.Writer
}

type command func(ctx context.Context, c *client, args []string) error

var commands = map[string]command{
	"add":    runAdd,
	"list":   runList,
	"filter": runFilter,
	"update": runUpdate,
	"delete": runDelete,
	"totals": runTotals,
}

func (c *client) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *client) userID() (string, error) {
	id, ok := c.session.CurrentUserID()
	if !ok {
		return "", errNotSignedIn
	}
	return id, nil
}

func runAdd(ctx context.Context, c *client, args []string) error {
	fs := c.flags("add")
	title := fs.String("title", "", "expense title")
	amount := fs.String("amount", "", "amount, dot or comma decimal separator")
	category := fs.String("category", "", "food, transport, shopping or other")
	note := fs.String("note", "", "optional note")
	date := fs.String("date", "", "expense date (YYYY-MM-DD), defaults to none")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", *amount, err)
	}
	d, err := parseDate(*date)
	if err != nil {
		return err
	}

	e, err := c.store.Create(ctx, core.Draft{
		Title:    *title,
		Amount:   amt,
		Category: core.Category(*category).Normalize(),
		Note:     *note,
		Date:     d,
	})
	if err != nil {
		return err
	}
	return printExpenses(c.out, []core.Expense{e})
}

func runList(ctx context.Context, c *client, args []string) error {
	if err := c.flags("list").Parse(args); err != nil {
		return err
	}
	uid, err := c.userID()
	if err != nil {
		return err
	}
	items, err := c.store.FetchAll(ctx, uid)
	if err != nil {
		return err
	}
	return printExpenses(c.out, items)
}

func runFilter(ctx context.Context, c *client, args []string) error {
	fs := c.flags("filter")
	category := fs.String("category", string(core.CategoryAll), "category to show, or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	uid, err := c.userID()
	if err != nil {
		return err
	}
	items, err := c.store.FilterByCategory(ctx, store.Filter{Category: core.Category(*category), UserID: uid})
	if err != nil {
		return err
	}
	return printExpenses(c.out, items)
}

func runUpdate(ctx context.Context, c *client, args []string) error {
	fs := c.flags("update")
	id := fs.String("id", "", "expense id")
	title := fs.String("title", "", "new title")
	amount := fs.String("amount", "", "new amount")
	category := fs.String("category", "", "new category")
	note := fs.String("note", "", "new note")
	date := fs.String("date", "", "new date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		patch core.Patch
		err   error
	)
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "title":
			patch.Title = title
		case "amount":
			var amt decimal.Decimal
			if amt, err = core.ParseAmount(*amount); err != nil {
				err = fmt.Errorf("amount %q: %w", *amount, err)
				return
			}
			patch.Amount = &amt
		case "category":
			cat := core.Category(*category).Normalize()
			patch.Category = &cat
		case "note":
			patch.Note = note
		case "date":
			patch.Date, err = parseDate(*date)
		}
	})
	if err != nil {
		return err
	}

	e, err := c.store.Update(ctx, *id, patch)
	if err != nil {
		return err
	}
	return printExpenses(c.out, []core.Expense{e})
}

func runDelete(ctx context.Context, c *client, args []string) error {
	fs := c.flags("delete")
	id := fs.String("id", "", "expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %s\n", *id)
	return nil
}

func runTotals(ctx context.Context, c *client, args []string) error {
	if err := c.flags("totals").Parse(args); err != nil {
		return err
	}
	uid, err := c.userID()
	if err != nil {
		return err
	}
	items, err := c.store.FetchAll(ctx, uid)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT")
	for _, t := range c.store.Totals() {
		fmt.Fprintf(tw, "%s\t%s\n", t.Category.Label(), t.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "Total\t%s\n", core.Sum(items).StringFixed(2))
	return tw.Flush()
}

// runToken mints a development token signed with JWT_SECRET.
func runToken(cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.String("user", "", "user id (token subject)")
	email := fs.String("email", "", "email claim")
	name := fs.String("name", "", "display name claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("token: -user is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("token: JWT_SECRET is not set")
	}

	v := identity.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	token, err := v.Issue(identity.Principal{UserID: *user, Email: *email, DisplayName: *name}, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return &t, nil
}

func printExpenses(w io.Writer, items []core.Expense) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tTITLE")
	for _, e := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, displayDate(e), e.Category.Label(), e.Amount.StringFixed(2), e.Title)
	}
	return tw.Flush()
}

// displayDate prefers the expense date over the creation time.
func displayDate(e core.Expense) string {
	switch {
	case e.Date != nil:
		return e.Date.Format(dateLayout)
	case e.CreatedAt != nil:
		return e.CreatedAt.Format(dateLayout)
	default:
		return "-"
	}
}
