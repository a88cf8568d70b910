package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/delivery"
	"github.com/tdalverme/umbral/internal/logger"
	"github.com/tdalverme/umbral/internal/matching"
	"github.com/tdalverme/umbral/internal/similarity"
)

const (
	PromptYes           = "Yes"
	PromptNo            = "No"
	PromptReportByUsers = "Report by users"
	PromptPlanToFile    = "Dump planned decisions to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportByUsers, PromptPlanToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one matching pass over all active users",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before notifying")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting umbral", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	s, err := openStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening stores", zap.Error(err))
	}
	defer s.Close(logger)

	engine, err := matching.New(matching.Deps{
		Listings: s.Listings,
		Users:    s.Users,
		Ledger:   s.Ledger,
		Delivery: delivery.NewLogDelivery(logger),
		Logger:   logger,
	}, matching.Options{
		Thresholds: similarity.Thresholds{
			Full: config.Matching.FullThreshold,
			Vibe: config.Matching.VibeThreshold,
		},
		PerUserLimit: config.Matching.PerUserLimit,
		Workers:      config.Matching.Workers,
	})
	if err != nil {
		logger.Fatal("building the matching engine", zap.Error(err))
	}

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	if !autoApprove {
		if err := confirmPass(ctx, engine, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	stats, err := engine.RunPass(ctx)
	if err != nil {
		logger.Fatal("matching pass failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Int("users_processed", stats.UsersProcessed),
		zap.Int("matches_found", stats.MatchesFound),
		zap.Int("notified", stats.Notified),
		zap.Int("errors", stats.Errors),
	)
}

// confirmPass shows the operator what a pass would notify and loops the
// prompt until they approve or bail out.
func confirmPass(ctx context.Context, engine *matching.Engine, logger *zap.Logger) error {
	stats, planned, err := engine.Plan(ctx)
	if err != nil {
		return fmt.Errorf("planning the pass: %w", err)
	}

	logger.Info("planned pass",
		zap.Int("users_processed", stats.UsersProcessed),
		zap.Int("users_skipped", stats.UsersSkipped),
		zap.Int("would_notify", len(planned)),
	)

	if len(planned) == 0 {
		return errExit
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptYes:
			return nil
		case PromptNo:
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return errExit
		case PromptReportByUsers:
			byUser := make(map[string]int, len(planned))
			for _, d := range planned {
				byUser[d.User.ID]++
			}
			pretty, _ := json.MarshalIndent(byUser, "", "  ")
			logger.Info(string(pretty), zap.Int("decisions count", len(planned)))
		case PromptPlanToFile:
			filename, err := dumpPlanToTmpFile(planned)
			if err != nil {
				return fmt.Errorf("dump plan to file: %w", err)
			}
			logger.Info("dumping plan to file", zap.String("filename", filename))
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func dumpPlanToTmpFile(planned []*delivery.Decision) (string, error) {
	f, err := os.CreateTemp("", app+"-plan-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(planned); err != nil {
		return "", err
	}

	return f.Name(), nil
}
