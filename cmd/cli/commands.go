package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"bookhub/internal/catalog"
	"bookhub/pkg/models"
)

type command func(ctx context.Context, c *apiClient, args []string, out io.Writer) error

var commands = map[string]map[string]command{
	"auth": {
		"register": authRegister,
		"login":    authLogin,
		"logout":   authLogout,
		"me":       authMe,
	},
	"books": {
		"list": booksList,
		"show": booksShow,
		"fund": booksFund,
	},
	"borrow": {
		"request":  borrowRequest,
		"collect":  borrowCollect,
		"list":     borrowList,
		"show":     borrowShow,
		"approve":  borrowTransition("approve"),
		"decline":  borrowTransition("decline"),
		"complete": borrowTransition("complete"),
	},
}

var errUsage = errors.New("usage")

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func authRegister(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	fs := newFlags("auth register", out)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -password)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	staff := fs.Bool("staff", false, "register as librarian")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("%w: auth register -username NAME -password PASS", errUsage)
	}
	if *confirm == "" {
		*confirm = *password
	}

	var resp struct {
		Message string         `json:"message"`
		User    map[string]any `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/register", false, map[string]any{
		"username":         *username,
		"password":         *password,
		"confirm_password": *confirm,
		"first_name":       *first,
		"last_name":        *last,
		"is_staff":         *staff,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ %s\n", resp.Message)
	return nil
}

func authLogin(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	fs := newFlags("auth login", out)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("%w: auth login -username NAME -password PASS", errUsage)
	}

	var resp tokenData
	if err := c.do(ctx, http.MethodPost, "/api/login", false, map[string]string{
		"username": *username,
		"password": *password,
	}, &resp); err != nil {
		return err
	}
	if err := saveToken(c.tokenPath, resp.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintln(out, "✅ logged in")
	return nil
}

func authLogout(ctx context.Context, c *apiClient, _ []string, out io.Writer) error {
	err := c.do(ctx, http.MethodPost, "/api/logout", true, nil, nil)
	var apiErr *apiError
	// An expired token is already useless; drop it anyway.
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
		return err
	}
	if err := clearToken(c.tokenPath); err != nil {
		return err
	}
	fmt.Fprintln(out, "✅ logged out")
	return nil
}

func authMe(ctx context.Context, c *apiClient, _ []string, out io.Writer) error {
	var user map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/users/me", true, nil, &user); err != nil {
		return err
	}
	return printJSON(out, user)
}

type bookList struct {
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Items  []models.Book `json:"items"`
}

func booksList(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	fs := newFlags("books list", out)
	q := fs.String("q", "", "search title or isbn")
	available := fs.String("available", "", "filter by availability (true|false)")
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(*limit))
	params.Set("offset", strconv.Itoa(*offset))
	if *q != "" {
		params.Set("q", *q)
	}
	if *available != "" {
		params.Set("available", *available)
	}

	var resp bookList
	if err := c.do(ctx, http.MethodGet, "/api/books?"+params.Encode(), false, nil, &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tISBN\tAVAILABLE")
	for _, b := range resp.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", b.ID, b.Title, b.ISBN, b.Available)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d\n", len(resp.Items), resp.Total)
	return nil
}

func booksShow(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	id, err := idFlag("books show", args, out)
	if err != nil {
		return err
	}
	var resp struct {
		Book          models.Book           `json:"book"`
		BorrowRequest *models.BorrowRequest `json:"borrow_request"`
	}
	// The token is optional here; send it when there is one so the caller's
	// request is included.
	_, tokenErr := readToken(c.tokenPath)
	if err := c.do(ctx, http.MethodGet, "/api/books/"+strconv.FormatInt(id, 10), tokenErr == nil, nil, &resp); err != nil {
		return err
	}
	return printJSON(out, resp)
}

func booksFund(ctx context.Context, c *apiClient, _ []string, out io.Writer) error {
	var entries []catalog.FundEntry
	if err := c.do(ctx, http.MethodGet, "/api/library-fund", true, nil, &entries); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tSUMMARY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Title, e.AvailabilityStatus, e.Summary)
	}
	return tw.Flush()
}

func borrowRequest(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	return bookAction(ctx, c, "borrow request", "borrow", args, out)
}

func borrowCollect(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	return bookAction(ctx, c, "borrow collect", "collect", args, out)
}

func bookAction(ctx context.Context, c *apiClient, name, action string, args []string, out io.Writer) error {
	fs := newFlags(name, out)
	book := fs.Int64("book", 0, "book id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *book <= 0 {
		return fmt.Errorf("%w: %s -book ID", errUsage, name)
	}

	var resp struct {
		Detail    string `json:"detail"`
		RequestID int64  `json:"request_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/books/"+strconv.FormatInt(*book, 10), true,
		map[string]string{"action": action}, &resp); err != nil {
		return err
	}
	if resp.RequestID > 0 {
		fmt.Fprintf(out, "✅ %s (request %d)\n", resp.Detail, resp.RequestID)
		return nil
	}
	fmt.Fprintf(out, "✅ %s\n", resp.Detail)
	return nil
}

type requestList struct {
	Total int                    `json:"total"`
	Items []models.BorrowRequest `json:"items"`
}

func borrowList(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	fs := newFlags("borrow list", out)
	borrower := fs.String("borrower", "", "borrower id (librarians only)")
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(*limit))
	params.Set("offset", strconv.Itoa(*offset))
	if *borrower != "" {
		params.Set("borrower", *borrower)
	}

	var resp requestList
	if err := c.do(ctx, http.MethodGet, "/api/borrow-requests?"+params.Encode(), true, nil, &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBOOK\tBORROWER\tSTATUS\tDUE\tOVERDUE")
	for _, r := range resp.Items {
		due := "-"
		if r.DueDate != nil {
			due = r.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%t\n", r.ID, r.BookID, r.BorrowerID, r.Status, due, r.Overdue)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d\n", len(resp.Items), resp.Total)
	return nil
}

func borrowShow(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
	id, err := idFlag("borrow show", args, out)
	if err != nil {
		return err
	}
	var br models.BorrowRequest
	if err := c.do(ctx, http.MethodGet, "/api/borrow-requests/"+strconv.FormatInt(id, 10), true, nil, &br); err != nil {
		return err
	}
	return printJSON(out, br)
}

func borrowTransition(action string) command {
	return func(ctx context.Context, c *apiClient, args []string, out io.Writer) error {
		fs := newFlags("borrow "+action, out)
		id := fs.Int64("id", 0, "borrow request id")
		due := fs.String("due", "", "due date, YYYY-MM-DD (approve only)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("%w: borrow %s -id ID", errUsage, action)
		}

		payload := map[string]string{"action": action}
		if *due != "" {
			payload["due_date"] = *due
		}

		var br models.BorrowRequest
		if err := c.do(ctx, http.MethodPut, "/api/borrow-requests/"+strconv.FormatInt(*id, 10), true, payload, &br); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ request %d is now %s\n", br.ID, br.Status)
		return nil
	}
}

func idFlag(name string, args []string, out io.Writer) (int64, error) {
	fs := newFlags(name, out)
	id := fs.Int64("id", 0, "id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, fmt.Errorf("%w: %s -id ID", errUsage, name)
	}
	return *id, nil
}

func printJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
