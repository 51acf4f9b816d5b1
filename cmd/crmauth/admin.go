package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/lachgar03/crm-project/internal/adapter/postgres"
	"github.com/lachgar03/crm-project/internal/config"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/service"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// runAdmin dispatches admin subcommands. Every user-facing command is
// scoped to a tenant selected by subdomain.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "reset-password":
		return runAdminResetPassword(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: crmauth admin <command> [options]

Commands:
  reset-password   Reset a user's password within a tenant
  create-user      Create a user within a tenant
  list-users       List a tenant's users
  list-tenants     List all tenants
  help             Show this help message

Examples:
  crmauth admin reset-password --tenant acme --email admin@acme.example.com
  crmauth admin create-user --tenant acme --email new@acme.example.com --first-name New --last-name User
  crmauth admin list-users --tenant acme
  crmauth admin list-tenants
`)
}

type adminDeps struct {
	store *postgres.Store
	auth  *service.AuthService
	users *service.UserService
}

func loadAdminDeps() (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := applySecrets(cfg); err != nil {
		return nil, nil, fmt.Errorf("secrets: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	tokens, err := service.NewTokenService(cfg.Auth)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("token service: %w", err)
	}
	authSvc := service.NewAuthService(store, tokens, cfg.Auth.BcryptCost)
	userSvc := service.NewUserService(store, authSvc, nil)

	deps := &adminDeps{store: store, auth: authSvc, users: userSvc}
	return deps, pool.Close, nil
}

// bindTenant resolves the subdomain and returns a context bound to the
// tenant.
func bindTenant(ctx context.Context, store *postgres.Store, subdomain string) (context.Context, error) {
	t, err := store.GetTenantBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant %q: %w", subdomain, err)
	}
	return tenantctx.WithTenant(ctx, t.ID), nil
}

func runAdminResetPassword(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	tenantSub := fs.String("tenant", "", "tenant subdomain (required)")
	email := fs.String("email", "", "user email address (required)")
	password := fs.String("password", "", "new password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tenantSub == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	newPass := *password
	if newPass == "" {
		var err error
		newPass, err = promptPasswordTwice()
		if err != nil {
			return err
		}
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, err := bindTenant(context.Background(), deps.store, *tenantSub)
	if err != nil {
		return err
	}
	if err := deps.auth.AdminResetPassword(ctx, *email, newPass); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Password reset successfully for %s\n", *email)
	return nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	tenantSub := fs.String("tenant", "", "tenant subdomain (required)")
	email := fs.String("email", "", "user email address (required)")
	firstName := fs.String("first-name", "", "user first name")
	lastName := fs.String("last-name", "", "user last name")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tenantSub == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPasswordTwice()
		if err != nil {
			return err
		}
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, err := bindTenant(context.Background(), deps.store, *tenantSub)
	if err != nil {
		return err
	}
	u, err := deps.users.Create(ctx, user.CreateRequest{
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Password:  pass,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%d, tenant=%d)\n", u.Email, u.ID, u.TenantID)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	tenantSub := fs.String("tenant", "", "tenant subdomain (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenantSub == "" {
		return fmt.Errorf("--tenant is required")
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, err := bindTenant(context.Background(), deps.store, *tenantSub)
	if err != nil {
		return err
	}
	users, err := deps.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tFIRST\tLAST\tENABLED")
	for i := range users {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n",
			users[i].ID, users[i].Email, users[i].FirstName, users[i].LastName, users[i].Enabled)
	}
	return w.Flush()
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	tenants, err := deps.store.ListTenants(context.Background())
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBDOMAIN\tNAME\tSTATUS\tPLAN")
	for i := range tenants {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			tenants[i].ID, tenants[i].Subdomain, tenants[i].Name, tenants[i].Status, tenants[i].Plan)
	}
	return w.Flush()
}

func promptPasswordTwice() (string, error) {
	pass, err := promptPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
