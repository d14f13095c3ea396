package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lukeharris/trackd/internal/config"
	"github.com/lukeharris/trackd/internal/project"
	"github.com/lukeharris/trackd/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an admin account plus a demo team and project",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	projectStore := project.NewStore(pool)

	const adminEmail = "admin@trackd.local"
	if _, err := userStore.GetByEmail(ctx, adminEmail); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("checking existing admin: %w", err)
	}

	password, err := generatePassword()
	if err != nil {
		return err
	}

	admin, err := userStore.Create(ctx, user.CreateUserInput{
		Email:    adminEmail,
		Password: password,
		FullName: "Administrator",
		Role:     user.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	slog.Info("created admin user", "id", admin.ID, "email", admin.Email)

	team, err := userStore.CreateTeam(ctx, "demo")
	if err != nil {
		return fmt.Errorf("creating demo team: %w", err)
	}
	if err := userStore.AddMembership(ctx, team.ID, admin.ID, user.RoleAdmin); err != nil {
		return fmt.Errorf("adding admin to demo team: %w", err)
	}

	prj, err := projectStore.CreateProject(ctx, project.CreateProjectInput{
		TeamID:      team.ID,
		Name:        "Getting Started",
		Description: "A sample project to explore the tracker.",
	}, admin.ID)
	if err != nil {
		return fmt.Errorf("creating demo project: %w", err)
	}

	bug, err := projectStore.CreateBug(ctx, project.CreateBugInput{
		ProjectID:   prj.ID,
		Title:       "Example: login page misaligned on mobile",
		Description: "Seeded example bug. Close it once you have had a look around.",
		Severity:    project.SeverityLow,
	}, admin.ID)
	if err != nil {
		return fmt.Errorf("creating demo bug: %w", err)
	}

	slog.Info("seeded demo data", "team", team.Name, "project", prj.Name, "bug", bug.ID)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Admin:     %s\n", admin.Email)
	fmt.Printf("Password:  %s\n", password)
	fmt.Printf("Team:      %s (%s)\n", team.Name, team.ID)
	fmt.Printf("Project:   %s (%s)\n", prj.Name, prj.ID)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:%d/api/v1/auth/signin -d '{\"email\":%q,\"password\":%q}'\n",
		cfg.Server.Port, admin.Email, password)

	return nil
}

// generatePassword produces a random password that satisfies the policy.
func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "St!" + base64.RawURLEncoding.EncodeToString(b) + "7", nil
}
