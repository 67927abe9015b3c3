package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/artpar/entitled/adapters/clock"
	"github.com/artpar/entitled/adapters/idgen"
	redisstore "github.com/artpar/entitled/adapters/redis"
	"github.com/artpar/entitled/adapters/sqlite"
	"github.com/artpar/entitled/app"
	"github.com/artpar/entitled/config"
	"github.com/artpar/entitled/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage per-user feature overrides",
	Long: `Manage per-user feature overrides.

An override pins the answer for one (user, feature) pair, in either
direction, and beats the user's tier. Overrides can carry an expiry
after which they stop counting.

Examples:
  entitled overrides grant user_123 custom-domains --reason "beta trial" --expires-in 720h
  entitled overrides deny user_456 api-access --reason "abuse"
  entitled overrides list user_123
  entitled overrides rm user_123 custom-domains`,
}

var overridesGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <feature-key>",
	Short: "Grant a feature to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverridesWrite(args[0], args[1], true)
	},
}

var overridesDenyCmd = &cobra.Command{
	Use:   "deny <user-id> <feature-key>",
	Short: "Deny a feature to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOverridesWrite(args[0], args[1], false)
	},
}

var overridesListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's overrides",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverridesList,
}

var overridesRmCmd = &cobra.Command{
	Use:   "rm <user-id> <feature-key>",
	Short: "Remove an override",
	Args:  cobra.ExactArgs(2),
	RunE:  runOverridesRm,
}

var (
	overrideReason    string
	overrideGrantedBy string
	overrideExpiresIn time.Duration
)

func init() {
	rootCmd.AddCommand(overridesCmd)

	overridesCmd.AddCommand(overridesGrantCmd)
	overridesCmd.AddCommand(overridesDenyCmd)
	overridesCmd.AddCommand(overridesListCmd)
	overridesCmd.AddCommand(overridesRmCmd)

	for _, c := range []*cobra.Command{overridesGrantCmd, overridesDenyCmd} {
		c.Flags().StringVar(&overrideReason, "reason", "", "why the override exists")
		c.Flags().StringVar(&overrideGrantedBy, "granted-by", "", "who authorized it")
		c.Flags().DurationVar(&overrideExpiresIn, "expires-in", 0, "lifetime, e.g. 720h (0 = never expires)")
	}
}

// openOverrideService builds an OverrideService against the configured
// store. The caller must invoke the returned cleanup.
func openOverrideService() (*app.OverrideService, func(), error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var store ports.OverrideStore
	cleanup := func() {}

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		store = sqlite.NewOverrideStore(db)
		cleanup = func() { db.Close() }

	case "redis":
		opts, err := redis.ParseURL(cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		store = redisstore.NewOverrideStore(rdb, "")
		cleanup = func() { rdb.Close() }

	default:
		return nil, nil, fmt.Errorf("driver %q has no persistent state to manage from the CLI", cfg.Database.Driver)
	}

	svc := app.NewOverrideService(app.OverrideDeps{
		Store:  store,
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
		Logger: zerolog.Nop(),
	})
	return svc, cleanup, nil
}

func runOverridesWrite(userID, featureKey string, enabled bool) error {
	svc, cleanup, err := openOverrideService()
	if err != nil {
		return err
	}
	defer cleanup()

	req := app.UpsertRequest{
		UserID:     userID,
		FeatureKey: featureKey,
		Enabled:    &enabled,
		Reason:     overrideReason,
		GrantedBy:  overrideGrantedBy,
	}
	if overrideExpiresIn > 0 {
		expires := time.Now().UTC().Add(overrideExpiresIn)
		req.ExpiresAt = &expires
	}

	res, err := svc.Upsert(context.Background(), req)
	if err != nil {
		return fmt.Errorf("failed to write override: %w", err)
	}

	verb := "denied"
	if enabled {
		verb = "granted"
	}
	action := "replaced"
	if res.Created {
		action = "created"
	}
	fmt.Printf("Override %s (%s): %s %s for %s\n", res.Override.ID, action, featureKey, verb, userID)
	if res.Override.ExpiresAt != nil {
		fmt.Printf("  expires: %s\n", res.Override.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func runOverridesList(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openOverrideService()
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := svc.List(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list overrides: %w", err)
	}
	if len(list) == 0 {
		fmt.Printf("No overrides for user %s.\n", args[0])
		return nil
	}

	now := svc.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tENABLED\tACTIVE\tEXPIRES\tGRANTED BY\tREASON")
	fmt.Fprintln(w, "-------\t-------\t------\t-------\t----------\t------")
	for _, o := range list {
		expires := "never"
		if o.ExpiresAt != nil {
			expires = o.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%s\t%s\n",
			o.FeatureKey, o.Enabled, o.ActiveAt(now), expires, o.GrantedBy, o.Reason)
	}
	return w.Flush()
}

func runOverridesRm(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openOverrideService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Delete(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to remove override: %w", err)
	}
	fmt.Printf("Override removed: %s / %s\n", args[0], args[1])
	return nil
}
