package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smartsurvey/internal/config"
	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/repository"
	"smartsurvey/internal/service"
)

func runSeed(cmd *cobra.Command, args []string) error {
	path := args[0]
	survey, _, err := checkSurvey(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB)
	surveys := service.NewSurveyService(
		repository.NewSurveyRepo(db, log),
		repository.NewResponseRepo(db, log),
		service.NewGraphRegistry(log),
		nil, nil, 0,
		log,
	)

	owner := service.HostID(ownerName)
	if err := surveys.Create(ctx, owner, survey); err != nil {
		return err
	}
	log.Info("survey seeded", "survey_id", survey.ID, "owner_id", owner, "questions", len(survey.Questions))

	if publish {
		if _, err := surveys.Publish(ctx, owner, survey.ID, survey.Version); err != nil {
			return fmt.Errorf("publish %s: %w", survey.ID, err)
		}
		log.Info("survey published", "survey_id", survey.ID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", survey.ID)
	return nil
}
